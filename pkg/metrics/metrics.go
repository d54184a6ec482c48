package metrics

import (
	"net/http"

	"github.com/opscart/k8s-pdb-guard/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes budget evaluations and decision counts as
// Prometheus metrics during the watch loop.
type Exporter struct {
	registry *prometheus.Registry

	disruptionsAllowed *prometheus.GaugeVec
	currentHealthy     *prometheus.GaugeVec
	desiredHealthy     *prometheus.GaugeVec
	totalMatched       *prometheus.GaugeVec
	decisions          *prometheus.CounterVec
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		disruptionsAllowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdb_guard_disruptions_allowed",
			Help: "Voluntary disruptions the budget currently permits.",
		}, []string{"namespace", "name"}),
		currentHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdb_guard_current_healthy",
			Help: "Ready pods matched by the budget selector.",
		}, []string{"namespace", "name"}),
		desiredHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdb_guard_desired_healthy",
			Help: "Resolved minimum number of healthy pods.",
		}, []string{"namespace", "name"}),
		totalMatched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pdb_guard_pods_matched",
			Help: "Pods matched by the budget selector, ready or not.",
		}, []string{"namespace", "name"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pdb_guard_eviction_decisions_total",
			Help: "Eviction decisions by verdict.",
		}, []string{"verdict"}),
	}

	e.registry.MustRegister(
		e.disruptionsAllowed,
		e.currentHealthy,
		e.desiredHealthy,
		e.totalMatched,
		e.decisions,
	)

	return e
}

// Record publishes one budget's evaluated status.
func (e *Exporter) Record(status models.BudgetStatus) {
	labels := prometheus.Labels{"namespace": status.Namespace, "name": status.Name}
	e.disruptionsAllowed.With(labels).Set(float64(status.Result.DisruptionsAllowed))
	e.currentHealthy.With(labels).Set(float64(status.Result.CurrentHealthy))
	e.desiredHealthy.With(labels).Set(float64(status.Result.DesiredHealthy))
	e.totalMatched.With(labels).Set(float64(status.Result.TotalMatched))
}

// Forget drops series for a deleted budget.
func (e *Exporter) Forget(namespace, name string) {
	e.disruptionsAllowed.DeleteLabelValues(namespace, name)
	e.currentHealthy.DeleteLabelValues(namespace, name)
	e.desiredHealthy.DeleteLabelValues(namespace, name)
	e.totalMatched.DeleteLabelValues(namespace, name)
}

// ObserveDecision counts an eviction decision by verdict.
func (e *Exporter) ObserveDecision(verdict models.Verdict) {
	e.decisions.WithLabelValues(string(verdict)).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr; blocks until the listener fails.
func (e *Exporter) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	return http.ListenAndServe(addr, mux)
}
