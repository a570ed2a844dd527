// Package metrics provides Prometheus metrics for the shul screen.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh cycle results.
const (
	ResultApplied    = "applied"
	ResultSuperseded = "superseded"
	ResultFailed     = "failed"
)

// Cache tiers.
const (
	TierDay      = "day"
	TierLocation = "location"
)

// Manager owns the registry and every collector. A nil *Manager is valid and
// records nothing.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	refreshCycles   *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	lastSuccess     prometheus.Gauge
	apiCalls        *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	unavailableRows prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry uses the given registry instead of a fresh one.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithProcessCollectors adds the Go runtime and process collectors.
func WithProcessCollectors() Option {
	return func(m *Manager) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "shulscreen",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.refreshCycles = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "cycles_total",
		Help:      "Refresh cycles by result (applied, superseded, failed).",
	}, []string{"result"})

	m.refreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "duration_seconds",
		Help:      "Wall time of one refresh cycle, fetch included.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	m.lastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "last_success_unix",
		Help:      "Unix time of the last applied board.",
	})

	m.apiCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "api",
		Name:      "calls_total",
		Help:      "Zmanim API calls by endpoint and result.",
	}, []string{"endpoint", "result"})

	m.apiDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "api",
		Name:      "call_duration_seconds",
		Help:      "Zmanim API call latency, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by tier and outcome (hit, miss).",
	}, []string{"tier", "outcome"})

	m.unavailableRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "board",
		Name:      "unavailable_rows",
		Help:      "Rows on the current board that could not be resolved.",
	})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) RefreshCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshCycles.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(d.Seconds())
	if result == ResultApplied {
		m.lastSuccess.SetToCurrentTime()
	}
}

func (m *Manager) APICall(endpoint string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.apiCalls.WithLabelValues(endpoint, result).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Manager) CacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(tier, outcome).Inc()
}

func (m *Manager) UnavailableRows(n int) {
	if m == nil {
		return
	}
	m.unavailableRows.Set(float64(n))
}
