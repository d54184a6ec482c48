package reporter

import (
	"fmt"
	"time"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

// ReportFormat represents the output format
type ReportFormat string

const (
	FormatMarkdown ReportFormat = "markdown"
	FormatCSV      ReportFormat = "csv"
)

// Report contains all data for generating reports
type Report struct {
	ClusterName    string
	Namespace      string
	GeneratedAt    time.Time
	Statuses       []models.BudgetStatus
	BudgetCount    int
	BlockedCount   int
	TotalAllowed   int
	NamespaceStats map[string]*NamespaceStats
}

// NamespaceStats holds statistics per namespace
type NamespaceStats struct {
	Namespace    string
	BudgetCount  int
	BlockedCount int
	TotalAllowed int
}

// Reporter generates disruption budget reports
type Reporter struct {
	format ReportFormat
}

// New creates a new reporter
func New(format ReportFormat) *Reporter {
	return &Reporter{
		format: format,
	}
}

// Generate builds a report from evaluated budget statuses
func (r *Reporter) Generate(statuses []models.BudgetStatus, clusterName, namespace string) (*Report, error) {
	report := &Report{
		ClusterName:    clusterName,
		Namespace:      namespace,
		GeneratedAt:    time.Now(),
		Statuses:       statuses,
		NamespaceStats: make(map[string]*NamespaceStats),
	}

	r.calculateStats(report)

	return report, nil
}

// calculateStats computes all statistics for the report
func (r *Reporter) calculateStats(report *Report) {
	for _, status := range report.Statuses {
		report.BudgetCount++
		report.TotalAllowed += status.Result.DisruptionsAllowed

		blocked := status.Result.DisruptionsAllowed == 0 && status.Result.TotalMatched > 0
		if blocked {
			report.BlockedCount++
		}

		if _, exists := report.NamespaceStats[status.Namespace]; !exists {
			report.NamespaceStats[status.Namespace] = &NamespaceStats{
				Namespace: status.Namespace,
			}
		}
		nsStat := report.NamespaceStats[status.Namespace]
		nsStat.BudgetCount++
		nsStat.TotalAllowed += status.Result.DisruptionsAllowed
		if blocked {
			nsStat.BlockedCount++
		}
	}
}

// FormatAge renders a duration the way kubectl does: 90s, 45m, 12h, 3d.
func FormatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
