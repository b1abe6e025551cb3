package notifications

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	dispatched       *prometheus.CounterVec
	skipped          *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	retries          *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. An already
// registered collector is reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "notifications_dispatched_total",
			Help:      "Notifications created by dispatch, by event type.",
		}, []string{"event_type"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "dispatch_skipped_total",
			Help:      "Dispatch candidates skipped, by event type and reason.",
		}, []string{"event_type", "reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "deliveries_total",
			Help:      "Delivery attempt outcomes, by channel and status.",
		}, []string{"channel", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifykit",
			Name:      "delivery_retries_scheduled_total",
			Help:      "Delivery retries scheduled, by channel.",
		}, []string{"channel"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "notifykit",
			Name:      "delivery_duration_seconds",
			Help:      "Backend send latency, by channel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}

	var err error
	m.dispatched, err = register(reg, m.dispatched)
	if err != nil {
		return nil, err
	}
	m.skipped, err = register(reg, m.skipped)
	if err != nil {
		return nil, err
	}
	m.deliveries, err = register(reg, m.deliveries)
	if err != nil {
		return nil, err
	}
	m.retries, err = register(reg, m.retries)
	if err != nil {
		return nil, err
	}
	m.deliveryDuration, err = register(reg, m.deliveryDuration)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) notificationDispatched(code string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(code).Inc()
}

func (m *Metrics) candidateSkipped(code, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(code, reason).Inc()
}

func (m *Metrics) deliveryFinished(ch Channel, status DeliveryStatus, took time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(ch.String(), string(status)).Inc()
	m.deliveryDuration.WithLabelValues(ch.String()).Observe(took.Seconds())
}

func (m *Metrics) retryScheduled(ch Channel) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(ch.String()).Inc()
}
