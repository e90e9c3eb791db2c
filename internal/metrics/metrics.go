// Package metrics exposes Prometheus collectors for admissions and
// notification delivery.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const namespace = "reservations"

// Metrics groups the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	admissions    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	requests      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Reservation state transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and result.",
		}, []string{"kind", "result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_depth",
			Help:      "Notifications waiting to be published.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.admissions, m.notifications, m.queueDepth, m.requests)
	return m
}

// ObserveAdmission counts one operation, labelled by the error it returned.
func (m *Metrics) ObserveAdmission(operation string, err error) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(operation, Outcome(err)).Inc()
}

// ObserveNotification counts one publish attempt.
func (m *Metrics) ObserveNotification(kind model.NotificationKind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

// SetQueueDepth records how many notifications are waiting.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Outcome maps an operation error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, model.ErrAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, model.ErrAlreadyCanceled):
		return "already_canceled"
	case errors.Is(err, model.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, model.ErrEventNotFound), errors.Is(err, model.ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, model.ErrIntegrityViolation):
		return "integrity_violation"
	case errors.Is(err, model.ErrInvalidStatus), errors.Is(err, model.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
