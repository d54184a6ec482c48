package drain

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/k8s-pdb-guard/pkg/admission"
	"github.com/opscart/k8s-pdb-guard/pkg/models"
)

// Observer receives the final verdict for each pod; the metrics
// exporter implements it.
type Observer interface {
	ObserveDecision(verdict models.Verdict)
}

// Options control per-pod retry behavior when a budget rejects an
// eviction. A rejection is not fatal: headroom may return as replacement
// pods become ready, so the drainer waits and retries.
type Options struct {
	MaxRetriesPerPod int
	Backoff          time.Duration
	Verbose          bool
	Observer         Observer
}

// Result summarizes a drain pass.
type Result struct {
	Decisions []*models.EvictionDecision
	Evicted   int
	Blocked   int
}

// Drainer issues one eviction request per pod through the admission
// gate, the way a node drain does.
type Drainer struct {
	gate *admission.Gate
	opts Options
}

func New(gate *admission.Gate, opts Options) *Drainer {
	if opts.MaxRetriesPerPod <= 0 {
		opts.MaxRetriesPerPod = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	return &Drainer{gate: gate, opts: opts}
}

// DrainPods requests eviction for each pod, retrying rejections with
// backoff. The final decision per pod lands in the result.
func (d *Drainer) DrainPods(ctx context.Context, pods []models.Pod) (*Result, error) {
	result := &Result{}

	for _, pod := range pods {
		decision, err := d.evictWithRetry(ctx, pod)
		if err != nil {
			return result, err
		}

		result.Decisions = append(result.Decisions, decision)
		if d.opts.Observer != nil {
			d.opts.Observer.ObserveDecision(decision.Verdict)
		}
		if decision.Admitted() {
			result.Evicted++
			if d.opts.Verbose {
				fmt.Printf("[DEBUG] Evicted %s/%s\n", pod.Namespace, pod.Name)
			}
		} else {
			result.Blocked++
			fmt.Printf("[WARN] Pod %s/%s blocked: %s\n", pod.Namespace, pod.Name, decision.Reason)
		}
	}

	return result, nil
}

func (d *Drainer) evictWithRetry(ctx context.Context, pod models.Pod) (*models.EvictionDecision, error) {
	var decision *models.EvictionDecision

	for attempt := 0; attempt <= d.opts.MaxRetriesPerPod; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return decision, ctx.Err()
			case <-time.After(d.opts.Backoff):
			}
		}

		decision = d.gate.RequestEviction(pod)
		if decision.Admitted() {
			return decision, nil
		}
	}

	return decision, nil
}
