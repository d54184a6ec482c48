package datasource

import "context"

// Figures are the budget status numbers the cluster itself publishes
// (via kube-state-metrics).
type Figures struct {
	DisruptionsAllowed int
	CurrentHealthy     int
	DesiredHealthy     int
	ExpectedPods       int
}

// Source supplies cluster-published budget figures for drift checking.
type Source interface {
	BudgetFigures(ctx context.Context, namespace, name string) (*Figures, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}
