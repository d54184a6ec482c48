package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/opscart/k8s-pdb-guard/pkg/admission"
	"github.com/opscart/k8s-pdb-guard/pkg/metrics"
)

// Watcher periodically re-lists budgets and pods, refreshes the gate,
// publishes metrics, and logs headroom transitions.
type Watcher struct {
	scanner   *Scanner
	gate      *admission.Gate
	exporter  *metrics.Exporter
	namespace string
	interval  time.Duration

	// blocked tracks budgets with zero headroom so transitions are
	// logged once, not every tick.
	blocked map[string]bool
}

func NewWatcher(scanner *Scanner, gate *admission.Gate, exporter *metrics.Exporter, namespace string, interval time.Duration) *Watcher {
	return &Watcher{
		scanner:   scanner,
		gate:      gate,
		exporter:  exporter,
		namespace: namespace,
		interval:  interval,
		blocked:   make(map[string]bool),
	}
}

// Run re-evaluates on every tick until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.tick(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				fmt.Printf("[WARN] Watch refresh failed: %v\n", err)
			}
		}
	}
}

func (w *Watcher) tick(ctx context.Context) error {
	if err := w.scanner.Refresh(ctx, w.namespace, w.gate); err != nil {
		return err
	}

	statuses, err := w.scanner.Statuses(ctx, w.namespace)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		key := status.Namespace + "/" + status.Name
		seen[key] = true

		if w.exporter != nil {
			w.exporter.Record(status)
		}

		nowBlocked := status.Result.DisruptionsAllowed == 0 && status.Result.TotalMatched > 0
		if nowBlocked && !w.blocked[key] {
			fmt.Printf("[WARN] Budget %s has no disruption headroom (%d/%d healthy)\n",
				key, status.Result.CurrentHealthy, status.Result.DesiredHealthy)
		} else if !nowBlocked && w.blocked[key] {
			fmt.Printf("[INFO] Budget %s regained headroom (%d allowed)\n",
				key, status.Result.DisruptionsAllowed)
		}
		w.blocked[key] = nowBlocked
	}

	for key := range w.blocked {
		if !seen[key] {
			delete(w.blocked, key)
			if w.exporter != nil {
				ns, name := splitKey(key)
				w.exporter.Forget(ns, name)
			}
		}
	}

	return nil
}

func splitKey(key string) (namespace, name string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}
