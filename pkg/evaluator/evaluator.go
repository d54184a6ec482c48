package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Evaluate computes a budget's availability figures from the live pod set.
// It is stateless: identical inputs always produce an identical result.
// Pods outside the budget's namespace or not matching its selector are
// ignored; a pod with an empty Namespace is treated as belonging to the
// budget's namespace, so offline manifests may omit metadata.namespace.
// Not-ready pods count toward the percentage base (TotalMatched) but not
// toward CurrentHealthy.
func Evaluate(budget *models.Budget, pods []models.Pod) (models.EvaluationResult, error) {
	var result models.EvaluationResult

	for _, pod := range pods {
		if pod.Namespace != "" && pod.Namespace != budget.Namespace {
			continue
		}
		if !budget.Matches(pod.Labels) {
			continue
		}
		result.TotalMatched++
		if pod.Ready {
			result.CurrentHealthy++
		}
	}

	desired, err := ResolveDesiredHealthy(budget, result.TotalMatched)
	if err != nil {
		return models.EvaluationResult{}, err
	}
	result.DesiredHealthy = desired
	result.DisruptionsAllowed = allowed(result.CurrentHealthy, desired)

	return result, nil
}

// ResolveDesiredHealthy resolves the budget spec to an absolute minimum
// number of healthy pods for the given matched-pod count.
//
// Rounding favors availability on both fields: minAvailable percentages
// round up, maxUnavailable percentages round down (a smaller allowed
// unavailability means a larger desired minimum).
func ResolveDesiredHealthy(budget *models.Budget, totalMatched int) (int, error) {
	switch {
	case budget.MinAvailable != nil:
		if budget.MinAvailable.Type == intstr.Int {
			return budget.MinAvailable.IntValue(), nil
		}
		pct, err := ParsePercentage(budget.MinAvailable.StrVal)
		if err != nil {
			return 0, fmt.Errorf("minAvailable: %w", err)
		}
		// ceil(pct/100 * totalMatched)
		return (pct*totalMatched + 99) / 100, nil

	case budget.MaxUnavailable != nil:
		if budget.MaxUnavailable.Type == intstr.Int {
			desired := totalMatched - budget.MaxUnavailable.IntValue()
			if desired < 0 {
				desired = 0
			}
			return desired, nil
		}
		pct, err := ParsePercentage(budget.MaxUnavailable.StrVal)
		if err != nil {
			return 0, fmt.Errorf("maxUnavailable: %w", err)
		}
		// floor(pct/100 * totalMatched) pods may be unavailable
		return totalMatched - (pct*totalMatched)/100, nil
	}

	return 0, fmt.Errorf("budget %s: neither minAvailable nor maxUnavailable set", budget.Key())
}

// ParsePercentage parses a percentage string like "50%" into an integer
// 0-100. Anything else is a validation error.
func ParsePercentage(s string) (int, error) {
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("malformed percentage %q: missing %% suffix", s)
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, fmt.Errorf("malformed percentage %q: %w", s, err)
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentage %q out of range 0-100", s)
	}
	return pct, nil
}

func allowed(currentHealthy, desiredHealthy int) int {
	if currentHealthy <= desiredHealthy {
		return 0
	}
	return currentHealthy - desiredHealthy
}
