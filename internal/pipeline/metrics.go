package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline progress. Each run owns its registry; the CLI
// dumps it to a node-exporter textfile when configured.
type Metrics struct {
	registry *prometheus.Registry

	batches       prometheus.Counter
	rowsResolved  prometheus.Counter
	taskFailures  prometheus.Counter
	unresolved    prometheus.Gauge
	batchDuration prometheus.Histogram
	state         *prometheus.GaugeVec
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velinterp",
			Name:      "batches_total",
			Help:      "Batches dispatched and checkpointed.",
		}),
		rowsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velinterp",
			Name:      "rows_resolved_total",
			Help:      "Rows that received an interpolated value.",
		}),
		taskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velinterp",
			Name:      "task_failures_total",
			Help:      "Row tasks that failed and stay unresolved.",
		}),
		unresolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "velinterp",
			Name:      "unresolved_rows",
			Help:      "Rows still lacking a value.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "velinterp",
			Name:      "batch_duration_seconds",
			Help:      "Time to dispatch and checkpoint one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "velinterp",
			Name:      "driver_state",
			Help:      "1 for the driver's current state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(m.batches, m.rowsResolved, m.taskFailures, m.unresolved, m.batchDuration, m.state)
	return m
}

// WriteTextfile writes the metrics in Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeBatch(resolved, failed, unresolved int, d time.Duration) {
	if m == nil {
		return
	}
	m.batches.Inc()
	m.rowsResolved.Add(float64(resolved))
	m.taskFailures.Add(float64(failed))
	m.unresolved.Set(float64(unresolved))
	m.batchDuration.Observe(d.Seconds())
}

func (m *Metrics) setUnresolved(n int) {
	if m == nil {
		return
	}
	m.unresolved.Set(float64(n))
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Reset()
	m.state.WithLabelValues(s.String()).Set(1)
}
