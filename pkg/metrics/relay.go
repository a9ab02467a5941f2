package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay outcomes recorded per outbox row.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeTerminal  = "terminal"
)

// RelayMetrics records outbox relay batches and per-row outcomes.
type RelayMetrics struct {
	batchDuration prometheus.Histogram
	rows          *prometheus.CounterVec
	backlog       prometheus.Gauge
}

// NewRelayMetrics registers the relay metrics on the provided registerer.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_relay_batch_duration_seconds",
		Help:    "Duration of outbox relay batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relay_published_total",
		Help: "Outbox rows handled by the relay, by outcome.",
	}, []string{"outcome"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_relay_backlog",
		Help: "Outbox rows waiting to be published.",
	})
	reg.MustRegister(batchDuration, rows, backlog)
	return &RelayMetrics{
		batchDuration: batchDuration,
		rows:          rows,
		backlog:       backlog,
	}
}

// ObserveBatch records the duration of one relay batch.
func (r *RelayMetrics) ObserveBatch(duration time.Duration) {
	if r == nil || r.batchDuration == nil {
		return
	}
	r.batchDuration.Observe(duration.Seconds())
}

// IncRow counts one row with the given outcome.
func (r *RelayMetrics) IncRow(outcome string) {
	if r == nil || r.rows == nil {
		return
	}
	r.rows.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetBacklog records the number of pending outbox rows.
func (r *RelayMetrics) SetBacklog(n int64) {
	if r == nil || r.backlog == nil {
		return
	}
	r.backlog.Set(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
