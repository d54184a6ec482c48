package storage

import (
	"context"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

// Store defines the interface for persistent storage
type Store interface {
	SaveDecision(ctx context.Context, decision *models.EvictionDecision) error
	GetDecision(ctx context.Context, id string) (*models.EvictionDecision, error)
	ListDecisions(ctx context.Context, namespace string, limit int) ([]*models.EvictionDecision, error)

	SaveEvaluation(ctx context.Context, record *models.EvaluationRecord) error
	GetBudgetHistory(ctx context.Context, namespace, name string, limit int) ([]*models.EvaluationRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
