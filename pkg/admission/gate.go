package admission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opscart/k8s-pdb-guard/pkg/evaluator"
	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

// ErrConflict is returned when concurrent decisions against the same
// budgets kept invalidating each other past the retry bound. Callers
// should treat it as transient and retry, not as a budget rejection.
var ErrConflict = errors.New("admission conflict retries exhausted")

const defaultMaxRetries = 5

// Gate serializes voluntary-eviction decisions against registered
// budgets. Each budget carries a versioned record; admission reads a
// snapshot of every budget matching the candidate pod and commits the
// consumption with a compare-and-swap on the versions, retrying on
// conflict. Budgets not matching the pod are never touched, and a pod
// matched by no budget is always admitted.
type Gate struct {
	mutex      sync.RWMutex
	records    map[string]*record
	maxRetries int

	// beforeCommit, when set, runs between the snapshot and commit
	// phases of a consume cycle; tests use it to interleave a
	// conflicting writer.
	beforeCommit func()
}

type record struct {
	mutex   sync.Mutex
	budget  *models.Budget
	result  models.EvaluationResult
	version uint64
}

// NewGate creates a gate with the given CAS retry bound; zero or
// negative means the default of 5.
func NewGate(maxRetries int) *Gate {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Gate{
		records:    make(map[string]*record),
		maxRetries: maxRetries,
	}
}

// SetBudget registers a budget or refreshes its evaluation. Called by
// the scanner on every re-list; replaces any consumption bookkeeping
// with the freshly observed state.
func (g *Gate) SetBudget(budget *models.Budget, result models.EvaluationResult) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	rec, exists := g.records[budget.Key()]
	if !exists {
		g.records[budget.Key()] = &record{budget: budget, result: result}
		return
	}

	rec.mutex.Lock()
	rec.budget = budget
	rec.result = result
	rec.version++
	rec.mutex.Unlock()
}

// RemoveBudget drops a deleted budget from the registry.
func (g *Gate) RemoveBudget(key string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.records, key)
}

// Snapshot returns the current evaluation for a budget key.
func (g *Gate) Snapshot(key string) (models.EvaluationResult, bool) {
	g.mutex.RLock()
	rec, exists := g.records[key]
	g.mutex.RUnlock()
	if !exists {
		return models.EvaluationResult{}, false
	}

	rec.mutex.Lock()
	defer rec.mutex.Unlock()
	return rec.result, true
}

// Keys returns the registered budget keys.
func (g *Gate) Keys() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	keys := make([]string, 0, len(g.records))
	for key := range g.records {
		keys = append(keys, key)
	}
	return keys
}

// RequestEviction decides a single voluntary eviction. All budgets
// matching the pod must have headroom; one unit is consumed from each
// atomically. The decision returns immediately, never blocks.
func (g *Gate) RequestEviction(pod models.Pod) *models.EvictionDecision {
	decision := &models.EvictionDecision{
		ID:           uuid.New().String(),
		PodName:      pod.Name,
		PodNamespace: pod.Namespace,
		DecidedAt:    time.Now(),
	}

	matching := g.matchingRecords(pod)
	if len(matching) == 0 {
		decision.Verdict = models.VerdictAdmitted
		decision.Reason = "no matching disruption budget"
		return decision
	}

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		outcome, ok := g.tryConsume(matching)
		decision.Budgets = outcome
		if !ok {
			continue // version moved under us, retry
		}

		for _, b := range outcome {
			if !b.Admitted {
				decision.Verdict = models.VerdictRejected
				decision.Reason = fmt.Sprintf("eviction would violate budget %s/%s", b.Namespace, b.Name)
				return decision
			}
		}
		decision.Verdict = models.VerdictAdmitted
		decision.Reason = "within budget"
		return decision
	}

	decision.Verdict = models.VerdictConflict
	decision.Reason = ErrConflict.Error()
	return decision
}

func (g *Gate) matchingRecords(pod models.Pod) []*record {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var matching []*record
	for _, rec := range g.records {
		rec.mutex.Lock()
		matches := rec.budget.Namespace == pod.Namespace && rec.budget.Matches(pod.Labels)
		rec.mutex.Unlock()
		if matches {
			matching = append(matching, rec)
		}
	}

	// Deterministic order so concurrent multi-budget decisions cannot
	// deadlock during the commit phase.
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].budget.Key() < matching[j].budget.Key()
	})
	return matching
}

// tryConsume runs one snapshot-then-commit cycle. The snapshot records
// each budget's version and headroom; the commit locks the records in
// key order, verifies no version moved, and applies the consumption to
// every budget only when all of them have headroom. A false return
// means a conflicting writer got in between and the cycle must be
// retried.
func (g *Gate) tryConsume(matching []*record) ([]models.BudgetOutcome, bool) {
	versions := make([]uint64, len(matching))
	outcome := make([]models.BudgetOutcome, len(matching))

	admitAll := true
	for i, rec := range matching {
		rec.mutex.Lock()
		versions[i] = rec.version
		outcome[i] = models.BudgetOutcome{
			Name:               rec.budget.Name,
			Namespace:          rec.budget.Namespace,
			DisruptionsAllowed: rec.result.DisruptionsAllowed,
			Admitted:           rec.result.DisruptionsAllowed >= 1,
		}
		rec.mutex.Unlock()
		if !outcome[i].Admitted {
			admitAll = false
		}
	}

	if !admitAll {
		// Rejection consumes nothing; no commit, no conflict possible.
		return outcome, true
	}

	if g.beforeCommit != nil {
		g.beforeCommit()
	}

	for i, rec := range matching {
		rec.mutex.Lock()

		if rec.version != versions[i] || rec.result.DisruptionsAllowed < 1 {
			rec.mutex.Unlock()
			for j := 0; j < i; j++ {
				matching[j].mutex.Unlock()
			}
			return outcome, false
		}
	}

	for _, rec := range matching {
		rec.consumeLocked()
		rec.mutex.Unlock()
	}
	return outcome, true
}

// consumeLocked applies one admitted eviction to the record: the pod
// leaves the matched set, so the percentage base shrinks and the
// desired minimum is re-resolved against it. Caller holds rec.mutex.
func (rec *record) consumeLocked() {
	rec.result.CurrentHealthy--
	rec.result.TotalMatched--

	desired, err := evaluator.ResolveDesiredHealthy(rec.budget, rec.result.TotalMatched)
	if err == nil {
		rec.result.DesiredHealthy = desired
	}

	allowed := rec.result.CurrentHealthy - rec.result.DesiredHealthy
	if allowed < 0 {
		allowed = 0
	}
	rec.result.DisruptionsAllowed = allowed
	rec.version++
}
