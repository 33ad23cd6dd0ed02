package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vk/buildgrid/internal/dag"
)

// metrics holds the Prometheus collectors for target execution. Each App
// owns its own registry so tests can create many apps.
type metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "buildgrid",
			Name:      "target_runs_total",
			Help:      "Number of finished targets by final status.",
		}, []string{"target", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "buildgrid",
			Name:      "target_duration_seconds",
			Help:      "Duration of target bodies.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"target"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "buildgrid",
			Name:      "targets_running",
			Help:      "Number of targets currently executing.",
		}),
	}
	m.registry.MustRegister(m.runs, m.duration, m.running)
	return m
}

// hooks wires the collectors into graph execution.
func (m *metrics) hooks() dag.Hooks {
	return dag.Hooks{
		OnTargetStart: func(context.Context, string) {
			m.running.Inc()
		},
		OnTargetFinish: func(_ context.Context, name string, status dag.Status, d time.Duration, _ error) {
			// Blocked targets never started.
			if status != dag.StatusBlocked {
				m.running.Dec()
				m.duration.WithLabelValues(name).Observe(d.Seconds())
			}
		},
		// Final statuses are only known once tolerated failures are
		// reclassified.
		OnRunFinish: func(_ context.Context, report *dag.Report) {
			for _, tr := range report.Targets {
				m.runs.WithLabelValues(tr.Name, tr.Status.String()).Inc()
			}
		},
	}
}
