package budget

import (
	"fmt"

	"github.com/opscart/k8s-pdb-guard/pkg/evaluator"
	"github.com/opscart/k8s-pdb-guard/pkg/models"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Validate checks a PodDisruptionBudget spec before it is accepted.
// Errors surface synchronously to the caller, matching API-server
// admission behavior: exactly one of minAvailable/maxUnavailable must be
// set, percentages must be well-formed, identity and selector required.
func Validate(pdb *policyv1.PodDisruptionBudget) error {
	if pdb.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if pdb.Namespace == "" {
		return fmt.Errorf("%s: metadata.namespace is required", pdb.Name)
	}

	min := pdb.Spec.MinAvailable
	max := pdb.Spec.MaxUnavailable

	if min != nil && max != nil {
		return fmt.Errorf("%s/%s: minAvailable and maxUnavailable are mutually exclusive", pdb.Namespace, pdb.Name)
	}
	if min == nil && max == nil {
		return fmt.Errorf("%s/%s: one of minAvailable or maxUnavailable must be set", pdb.Namespace, pdb.Name)
	}

	if err := validateField("minAvailable", min); err != nil {
		return fmt.Errorf("%s/%s: %w", pdb.Namespace, pdb.Name, err)
	}
	if err := validateField("maxUnavailable", max); err != nil {
		return fmt.Errorf("%s/%s: %w", pdb.Namespace, pdb.Name, err)
	}

	if pdb.Spec.Selector == nil || len(pdb.Spec.Selector.MatchLabels) == 0 && len(pdb.Spec.Selector.MatchExpressions) == 0 {
		return fmt.Errorf("%s/%s: spec.selector is required", pdb.Namespace, pdb.Name)
	}

	return nil
}

func validateField(name string, v *intstr.IntOrString) error {
	if v == nil {
		return nil
	}
	if v.Type == intstr.Int {
		if v.IntValue() < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v.IntValue())
		}
		return nil
	}
	if _, err := evaluator.ParsePercentage(v.StrVal); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// FromPDB validates an API object and converts it to the internal model,
// compiling the label selector once.
func FromPDB(pdb *policyv1.PodDisruptionBudget) (*models.Budget, error) {
	if err := Validate(pdb); err != nil {
		return nil, err
	}

	selector, err := metav1.LabelSelectorAsSelector(pdb.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: invalid selector: %w", pdb.Namespace, pdb.Name, err)
	}

	return &models.Budget{
		Name:           pdb.Name,
		Namespace:      pdb.Namespace,
		MatchLabels:    pdb.Spec.Selector.MatchLabels,
		Selector:       selector,
		MinAvailable:   pdb.Spec.MinAvailable,
		MaxUnavailable: pdb.Spec.MaxUnavailable,
		CreatedAt:      pdb.CreationTimestamp.Time,
	}, nil
}

// SpecStrings renders the resolved spec fields for status output, "N/A"
// for the unset side.
func SpecStrings(b *models.Budget) (minAvailable, maxUnavailable string) {
	minAvailable, maxUnavailable = "N/A", "N/A"
	if b.MinAvailable != nil {
		minAvailable = b.MinAvailable.String()
	}
	if b.MaxUnavailable != nil {
		maxUnavailable = b.MaxUnavailable.String()
	}
	return minAvailable, maxUnavailable
}
