package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DrawMetrics records draw engine observations.
type DrawMetrics struct {
	duration   *prometheus.HistogramVec
	decisions  *prometheus.CounterVec
	undrawable *prometheus.CounterVec
	contention *prometheus.CounterVec
}

// NewDrawMetrics registers the draw engine metrics on the provided registerer.
func NewDrawMetrics(reg prometheus.Registerer) *DrawMetrics {
	if reg == nil {
		return &DrawMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricNamespace,
		Name:      "draw_duration_seconds",
		Help:      "Duration of committed draws in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"decision"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "draw_decisions_total",
		Help:      "Committed draw decisions by type.",
	}, []string{"decision"})
	undrawable := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "draw_undrawable_pool_total",
		Help:      "Winning rolls downgraded because the prize pool had no drawable entries.",
	}, []string{"container_type"})
	contention := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "draw_commit_contention_total",
		Help:      "Draw commits retried after losing a budget or override race.",
	}, []string{"container_type"})
	reg.MustRegister(duration, decisions, undrawable, contention)
	return &DrawMetrics{
		duration:   duration,
		decisions:  decisions,
		undrawable: undrawable,
		contention: contention,
	}
}

// ObserveDraw records one committed draw.
func (d *DrawMetrics) ObserveDraw(decisionType string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	label := normalizeLabel(decisionType)
	d.duration.WithLabelValues(label).Observe(duration.Seconds())
	d.decisions.WithLabelValues(label).Inc()
}

// IncUndrawablePool increments the undrawable pool counter for a container type.
func (d *DrawMetrics) IncUndrawablePool(containerTypeID string) {
	if d == nil || d.undrawable == nil {
		return
	}
	d.undrawable.WithLabelValues(normalizeLabel(containerTypeID)).Inc()
}

// IncContention increments the commit contention counter for a container type.
func (d *DrawMetrics) IncContention(containerTypeID string) {
	if d == nil || d.contention == nil {
		return
	}
	d.contention.WithLabelValues(normalizeLabel(containerTypeID)).Inc()
}
