package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusSource reads the cluster's own PDB status figures from
// kube-state-metrics series scraped into Prometheus.
type PrometheusSource struct {
	client v1.API
	url    string
}

func NewPrometheusSource(url string) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusSource{
		client: v1.NewAPI(client),
		url:    url,
	}, nil
}

// BudgetFigures queries the four kube-state-metrics PDB status series
// for one budget.
func (p *PrometheusSource) BudgetFigures(ctx context.Context, namespace, name string) (*Figures, error) {
	selector := fmt.Sprintf(`{namespace=%q,poddisruptionbudget=%q}`, namespace, name)

	allowed, err := p.querySingle(ctx, "kube_poddisruptionbudget_status_pod_disruptions_allowed"+selector)
	if err != nil {
		return nil, fmt.Errorf("disruptions-allowed query failed: %w", err)
	}

	currentHealthy, err := p.querySingle(ctx, "kube_poddisruptionbudget_status_current_healthy"+selector)
	if err != nil {
		return nil, fmt.Errorf("current-healthy query failed: %w", err)
	}

	desiredHealthy, err := p.querySingle(ctx, "kube_poddisruptionbudget_status_desired_healthy"+selector)
	if err != nil {
		return nil, fmt.Errorf("desired-healthy query failed: %w", err)
	}

	expected, err := p.querySingle(ctx, "kube_poddisruptionbudget_status_expected_pods"+selector)
	if err != nil {
		// Older kube-state-metrics versions lack this series.
		expected = -1
	}

	return &Figures{
		DisruptionsAllowed: int(allowed),
		CurrentHealthy:     int(currentHealthy),
		DesiredHealthy:     int(desiredHealthy),
		ExpectedPods:       int(expected),
	}, nil
}

func (p *PrometheusSource) querySingle(ctx context.Context, query string) (float64, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		fmt.Printf("[WARN] Prometheus: %v\n", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok || len(vector) == 0 {
		return 0, fmt.Errorf("no data for query: %s", query)
	}

	return float64(vector[0].Value), nil
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}
