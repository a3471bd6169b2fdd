// Package metrics exposes broker activity as Prometheus metrics. Labels are
// limited to small fixed sets (outcome codes and trust tiers); domains are
// never used as labels.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smdnano"

// OutcomeOK labels successful operations; failures use their error code.
const OutcomeOK = "ok"

// Collector owns the metric instances and their registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	decisions   *prometheus.CounterVec
	generations *prometheus.CounterVec
	fills       *prometheus.CounterVec
	deriveTime  prometheus.Histogram
	cacheSize   prometheus.Gauge
	degraded    prometheus.Counter
}

// NewCollector registers all metrics on registry, or on a fresh registry
// when registry is nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_decisions_total",
			Help:      "Policy evaluations by action and trust tier.",
		}, []string{"action", "trust"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generate commands by outcome.",
		}, []string{"outcome"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Fill commands by outcome.",
		}, []string{"outcome"}),
		deriveTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "derive_duration_seconds",
			Help:      "Wall time of a full password derivation.",
			// Key stretching dominates; expect tens to hundreds of ms.
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_cache_entries",
			Help:      "Pending secrets awaiting fill.",
		}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_degraded_total",
			Help:      "Decisions made with fail-open defaults because the policy could not be loaded.",
		}),
	}
	registry.MustRegister(c.decisions, c.generations, c.fills, c.deriveTime, c.cacheSize, c.degraded)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordDecision counts one policy evaluation.
func (c *Collector) RecordDecision(action, trust string, degraded bool) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(action, trust).Inc()
	if degraded {
		c.degraded.Inc()
	}
}

// RecordGenerate counts one generate command. outcome is OutcomeOK or an
// error code.
func (c *Collector) RecordGenerate(outcome string) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(outcome).Inc()
}

// ObserveDerive records how long a derivation took.
func (c *Collector) ObserveDerive(d time.Duration) {
	if c == nil {
		return
	}
	c.deriveTime.Observe(d.Seconds())
}

// RecordFill counts one fill command.
func (c *Collector) RecordFill(outcome string) {
	if c == nil {
		return
	}
	c.fills.WithLabelValues(outcome).Inc()
}

// SetCacheEntries publishes the current cache size.
func (c *Collector) SetCacheEntries(n int) {
	if c == nil {
		return
	}
	c.cacheSize.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
