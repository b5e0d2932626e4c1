package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart operations, reconciliations and session transitions.
type CartMetrics struct {
	duration    *prometheus.HistogramVec
	success     *prometheus.CounterVec
	failure     *prometheus.CounterVec
	discarded   prometheus.Counter
	items       prometheus.Gauge
	amount      prometheus.Gauge
	transitions *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations including the reconciling fetch.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_success",
		Help: "Successful cart operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_failure",
		Help: "Failed cart operations.",
	}, []string{"op"})
	discarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_stale_results_discarded",
		Help: "Fetched carts dropped because a newer result or auth transition superseded them.",
	})
	items := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_items",
		Help: "Total quantity in the reconciled cart view.",
	})
	amount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_amount",
		Help: "Total amount of the reconciled cart view.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_transitions",
		Help: "Session transitions by event.",
	}, []string{"event"})
	reg.MustRegister(duration, success, failure, discarded, items, amount, transitions)
	return &CartMetrics{
		duration:    duration,
		success:     success,
		failure:     failure,
		discarded:   discarded,
		items:       items,
		amount:      amount,
		transitions: transitions,
	}
}

// ObserveDuration records the duration for the named operation.
func (c *CartMetrics) ObserveDuration(op string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (c *CartMetrics) IncSuccess(op string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (c *CartMetrics) IncFailure(op string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncDiscarded counts a fetched cart that was not committed.
func (c *CartMetrics) IncDiscarded() {
	if c == nil || c.discarded == nil {
		return
	}
	c.discarded.Inc()
}

// SetTotals publishes the current view totals.
func (c *CartMetrics) SetTotals(items int, amount float64) {
	if c == nil || c.items == nil {
		return
	}
	c.items.Set(float64(items))
	c.amount.Set(amount)
}

// IncTransition counts a session transition.
func (c *CartMetrics) IncTransition(event string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
