package datasource

import (
	"fmt"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

// Drift is one disagreement between the local evaluation and the
// cluster-published figure for a budget.
type Drift struct {
	Namespace string
	Name      string
	Field     string
	Local     int
	Cluster   int
}

func (d Drift) String() string {
	return fmt.Sprintf("%s/%s %s: local=%d cluster=%d", d.Namespace, d.Name, d.Field, d.Local, d.Cluster)
}

// CompareFigures diffs a local evaluation against cluster figures.
// ExpectedPods of -1 means the series was unavailable and is skipped.
func CompareFigures(status models.BudgetStatus, figures *Figures) []Drift {
	var drifts []Drift

	check := func(field string, local, cluster int) {
		if local != cluster {
			drifts = append(drifts, Drift{
				Namespace: status.Namespace,
				Name:      status.Name,
				Field:     field,
				Local:     local,
				Cluster:   cluster,
			})
		}
	}

	check("disruptionsAllowed", status.Result.DisruptionsAllowed, figures.DisruptionsAllowed)
	check("currentHealthy", status.Result.CurrentHealthy, figures.CurrentHealthy)
	check("desiredHealthy", status.Result.DesiredHealthy, figures.DesiredHealthy)
	if figures.ExpectedPods >= 0 {
		check("expectedPods", status.Result.TotalMatched, figures.ExpectedPods)
	}

	return drifts
}
