package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richinex/sandboxagent/agent"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	toolCalls  *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandboxagent_runs_total",
				Help: "Agent runs by outcome (succeeded or an error code).",
			},
			[]string{"outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandboxagent_tool_calls_total",
				Help: "Tool invocations by tool and success.",
			},
			[]string{"tool", "success"},
		),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sandboxagent_run_iterations",
			Help:    "Completed tool iterations per run.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sandboxagent_run_duration_seconds",
			Help:    "Wall time of agent runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.runs,
		m.toolCalls,
		m.iterations,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(outcome string, meta agent.Metadata, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.iterations.Observe(float64(meta.Iterations))
	m.duration.Observe(elapsed.Seconds())
	for _, call := range meta.ToolCalls {
		m.toolCalls.WithLabelValues(call.Name, strconv.FormatBool(call.Success)).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
