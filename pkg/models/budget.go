package models

import (
	"time"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// Budget is the internal form of a PodDisruptionBudget. Exactly one of
// MinAvailable or MaxUnavailable is set; budget.Validate enforces this
// before a Budget is ever constructed.
type Budget struct {
	Name      string
	Namespace string

	// MatchLabels is kept for display; Selector is the compiled predicate.
	MatchLabels map[string]string
	Selector    labels.Selector

	MinAvailable   *intstr.IntOrString
	MaxUnavailable *intstr.IntOrString

	CreatedAt time.Time
}

// Key returns the namespace/name identity used by the gate registry.
func (b *Budget) Key() string {
	return b.Namespace + "/" + b.Name
}

// Matches reports whether a pod's labels satisfy the budget selector.
func (b *Budget) Matches(podLabels map[string]string) bool {
	if b.Selector == nil {
		return false
	}
	return b.Selector.Matches(labels.Set(podLabels))
}

// Age returns time elapsed since the budget was created.
func (b *Budget) Age(now time.Time) time.Duration {
	if b.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(b.CreatedAt)
}

// Pod carries the fields the evaluator needs: identity, labels for
// selector matching, readiness for availability counting.
type Pod struct {
	Name      string
	Namespace string
	Node      string
	Labels    map[string]string
	Ready     bool
}
