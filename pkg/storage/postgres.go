package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/k8s-pdb-guard/pkg/models"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var postgresFS embed.FS

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		dsn: dsn,
	}

	// Run migrations
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate runs database migrations
func (s *PostgresStore) migrate() error {
	schema, err := postgresFS.ReadFile("migrations/001_postgres_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// SaveDecision persists an eviction decision and its per-budget outcomes
func (s *PostgresStore) SaveDecision(ctx context.Context, decision *models.EvictionDecision) error {
	if decision.ID == "" {
		decision.ID = uuid.New().String()
	}
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO eviction_decisions (id, pod_name, pod_namespace, verdict, reason, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, decision.ID, decision.PodName, decision.PodNamespace,
		string(decision.Verdict), decision.Reason, decision.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	for _, outcome := range decision.Budgets {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO decision_budgets (decision_id, budget_name, budget_namespace, disruptions_allowed, admitted)
			VALUES ($1, $2, $3, $4, $5)
		`, decision.ID, outcome.Name, outcome.Namespace, outcome.DisruptionsAllowed, outcome.Admitted)
		if err != nil {
			return fmt.Errorf("failed to insert budget outcome: %w", err)
		}
	}

	return tx.Commit()
}

// GetDecision retrieves a decision by ID
func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*models.EvictionDecision, error) {
	var decision models.EvictionDecision
	var verdict string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, pod_name, pod_namespace, verdict, reason, decided_at
		FROM eviction_decisions
		WHERE id = $1
	`, id).Scan(&decision.ID, &decision.PodName, &decision.PodNamespace,
		&verdict, &decision.Reason, &decision.DecidedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	decision.Verdict = models.Verdict(verdict)

	if err := s.loadOutcomes(ctx, &decision); err != nil {
		return nil, err
	}

	return &decision, nil
}

// ListDecisions returns recent decisions for a pod namespace
func (s *PostgresStore) ListDecisions(ctx context.Context, namespace string, limit int) ([]*models.EvictionDecision, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pod_name, pod_namespace, verdict, reason, decided_at
		FROM eviction_decisions
		WHERE pod_namespace = $1
		ORDER BY decided_at DESC
		LIMIT $2
	`, namespace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.EvictionDecision
	for rows.Next() {
		var decision models.EvictionDecision
		var verdict string
		if err := rows.Scan(&decision.ID, &decision.PodName, &decision.PodNamespace,
			&verdict, &decision.Reason, &decision.DecidedAt); err != nil {
			return nil, err
		}
		decision.Verdict = models.Verdict(verdict)
		decisions = append(decisions, &decision)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, decision := range decisions {
		if err := s.loadOutcomes(ctx, decision); err != nil {
			return nil, err
		}
	}

	return decisions, nil
}

func (s *PostgresStore) loadOutcomes(ctx context.Context, decision *models.EvictionDecision) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT budget_name, budget_namespace, disruptions_allowed, admitted
		FROM decision_budgets
		WHERE decision_id = $1
	`, decision.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var outcome models.BudgetOutcome
		if err := rows.Scan(&outcome.Name, &outcome.Namespace,
			&outcome.DisruptionsAllowed, &outcome.Admitted); err != nil {
			return err
		}
		decision.Budgets = append(decision.Budgets, outcome)
	}
	return rows.Err()
}

// SaveEvaluation persists an evaluation snapshot
func (s *PostgresStore) SaveEvaluation(ctx context.Context, record *models.EvaluationRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ObservedAt.IsZero() {
		record.ObservedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_evaluations (
			id, budget_name, budget_namespace,
			total_matched, current_healthy, desired_healthy, disruptions_allowed,
			observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, record.ID, record.BudgetName, record.BudgetNamespace,
		record.Result.TotalMatched, record.Result.CurrentHealthy,
		record.Result.DesiredHealthy, record.Result.DisruptionsAllowed,
		record.ObservedAt)

	return err
}

// GetBudgetHistory returns recent evaluation snapshots for a budget
func (s *PostgresStore) GetBudgetHistory(ctx context.Context, namespace, name string, limit int) ([]*models.EvaluationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, budget_name, budget_namespace,
			total_matched, current_healthy, desired_healthy, disruptions_allowed,
			observed_at
		FROM budget_evaluations
		WHERE budget_namespace = $1 AND budget_name = $2
		ORDER BY observed_at DESC
		LIMIT $3
	`, namespace, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.EvaluationRecord
	for rows.Next() {
		var record models.EvaluationRecord
		if err := rows.Scan(&record.ID, &record.BudgetName, &record.BudgetNamespace,
			&record.Result.TotalMatched, &record.Result.CurrentHealthy,
			&record.Result.DesiredHealthy, &record.Result.DisruptionsAllowed,
			&record.ObservedAt); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
