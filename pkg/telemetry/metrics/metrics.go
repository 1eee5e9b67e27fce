// Package metrics exposes Prometheus instrumentation for the gateway:
// per-provider attempt counts, latencies, fallbacks, and metered usage.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records all gateway metrics. A nil *Collector
// is valid and records nothing, so instrumentation can be disabled by
// simply not constructing one.
type Collector struct {
	registry *prometheus.Registry

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics. If
// registry is nil a fresh registry is used.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibehub",
				Subsystem: "gateway",
				Name:      "provider_attempts_total",
				Help:      "Total provider attempts by provider, status code and outcome",
			},
			[]string{"provider", "status", "outcome"},
		),

		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vibehub",
				Subsystem: "gateway",
				Name:      "provider_attempt_duration_seconds",
				Help:      "Duration of provider attempts in seconds",
				// Optimized for LLM request latencies (100ms - 30s).
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"provider"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibehub",
				Subsystem: "gateway",
				Name:      "provider_fallbacks_total",
				Help:      "Attempts that fell through to the next candidate",
			},
			[]string{"provider"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibehub",
				Subsystem: "gateway",
				Name:      "tokens_total",
				Help:      "Estimated tokens metered on forwarded requests",
			},
			[]string{"provider", "type"},
		),

		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vibehub",
				Subsystem: "gateway",
				Name:      "cost_usd_total",
				Help:      "Estimated cost in USD metered on forwarded requests",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		c.attemptsTotal,
		c.attemptDuration,
		c.fallbacksTotal,
		c.tokensTotal,
		c.costTotal,
	)

	return c
}

// RecordAttempt records one provider attempt.
func (c *Collector) RecordAttempt(provider string, status int, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(provider, strconv.Itoa(status), outcome).Inc()
	c.attemptDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordFallback records an attempt that fell through to the next
// candidate.
func (c *Collector) RecordFallback(provider string) {
	if c == nil {
		return
	}
	c.fallbacksTotal.WithLabelValues(provider).Inc()
}

// RecordUsage records metered token and cost estimates for a forwarded
// request.
func (c *Collector) RecordUsage(provider string, inputTokens, outputTokens int, cost float64) {
	if c == nil {
		return
	}
	c.tokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	c.tokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	c.costTotal.WithLabelValues(provider).Add(cost)
}
