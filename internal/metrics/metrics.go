package metrics

import (
	"time"

	"github.com/ariefcatur/resilient-orders/internal/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orders"

var (
	Placements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "placements_total",
		Help:      "Order placements by terminal state.",
	}, []string{"state"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_reconciliations_total",
		Help:      "OrderCreated events handled by the stock consumer, by result.",
	}, []string{"result"})

	DownstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downstream_retries_total",
		Help:      "Retries scheduled by a resilience policy.",
	}, []string{"policy"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breaker_transitions_total",
		Help:      "Circuit breaker state changes.",
	}, []string{"breaker", "to"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Current breaker state: 0 closed, 1 open, 2 half-open.",
	}, []string{"breaker"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Inbound HTTP latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)

// Listener records resilience notifications as metrics.
type Listener struct{}

func (Listener) RetryScheduled(policy string, _ int, _ time.Duration, _ error) {
	DownstreamRetries.WithLabelValues(policy).Inc()
}

func (Listener) StateChanged(breaker string, _, to resilience.State) {
	BreakerTransitions.WithLabelValues(breaker, to.String()).Inc()
	BreakerState.WithLabelValues(breaker).Set(float64(to))
}
