package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraud"

// Prometheus exports pipeline counters. It satisfies ports.Metrics.
type Prometheus struct {
	registry      *prometheus.Registry
	enqueueFailed prometheus.Counter
	evaluations   *prometheus.CounterVec
	retries       *prometheus.CounterVec
	deadLettered  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	return NewPrometheusWithRegistry(prometheus.NewRegistry())
}

func NewPrometheusWithRegistry(registry *prometheus.Registry) *Prometheus {
	m := &Prometheus{
		registry: registry,
		enqueueFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueue_failures_total",
			Help:      "Evaluation jobs that could not be enqueued after the transaction was stored.",
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completed evaluations by decided status.",
		}, []string{"status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_retries_total",
			Help:      "Evaluation jobs rescheduled after a failure, by failing stage.",
		}, []string{"stage"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dead_lettered_total",
			Help:      "Evaluation jobs moved to the dead-letter list, by reason.",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(m.enqueueFailed, m.evaluations, m.retries, m.deadLettered, m.cacheLookups)
	return m
}

func (m *Prometheus) EnqueueFailed() { m.enqueueFailed.Inc() }

func (m *Prometheus) EvaluationCompleted(status string) {
	m.evaluations.WithLabelValues(status).Inc()
}

func (m *Prometheus) EvaluationRetried(stage string) {
	m.retries.WithLabelValues(stage).Inc()
}

func (m *Prometheus) JobDeadLettered(reason string) {
	m.deadLettered.WithLabelValues(reason).Inc()
}

func (m *Prometheus) CacheLookup(outcome string) {
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
