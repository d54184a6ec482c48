package models

import "time"

// EvaluationResult is the output of one budget evaluation over a pod set.
type EvaluationResult struct {
	TotalMatched       int
	CurrentHealthy     int
	DesiredHealthy     int
	DisruptionsAllowed int
}

// BudgetStatus is the query surface for one budget: resolved spec fields,
// the live evaluation, and age since creation.
type BudgetStatus struct {
	Name           string
	Namespace      string
	MinAvailable   string // "N/A" when unset
	MaxUnavailable string // "N/A" when unset
	Result         EvaluationResult
	Age            time.Duration
}

// EvaluationRecord is a persisted evaluation snapshot for history
// queries.
type EvaluationRecord struct {
	ID              string
	BudgetName      string
	BudgetNamespace string
	Result          EvaluationResult
	ObservedAt      time.Time
}

// Verdict is the outcome of an eviction admission request.
type Verdict string

const (
	VerdictAdmitted Verdict = "ADMITTED"
	VerdictRejected Verdict = "REJECTED"
	// VerdictConflict means the gate exhausted its CAS retries; the
	// caller should retry later, same as a rejection but transient.
	VerdictConflict Verdict = "CONFLICT"
)

// BudgetOutcome records one budget's contribution to a decision.
type BudgetOutcome struct {
	Name               string
	Namespace          string
	DisruptionsAllowed int // headroom observed at decision time
	Admitted           bool
}

// EvictionDecision is the record of a single admit/deny decision.
type EvictionDecision struct {
	ID           string
	PodName      string
	PodNamespace string
	Verdict      Verdict
	Reason       string
	Budgets      []BudgetOutcome
	DecidedAt    time.Time
}

// Admitted reports whether the eviction may proceed.
func (d *EvictionDecision) Admitted() bool {
	return d.Verdict == VerdictAdmitted
}
