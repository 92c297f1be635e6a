package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records dispatch engine outcomes.
type DispatchMetrics struct {
	requestsCreated *prometheus.CounterVec
	reassignments   prometheus.Counter
	exhausted       prometheus.Counter
	notifications   *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which keeps unit tests quiet.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}

	requestsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_requests_created_total",
		Help: "Service requests created, labelled by initial status.",
	}, []string{"status"})
	reassignments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_reassignments_total",
		Help: "Fallback rounds that produced a new pending assignment.",
	})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_requests_exhausted_total",
		Help: "Requests that ran out of candidate agents.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notifications_total",
		Help: "Acceptance notifications, labelled by delivery outcome.",
	}, []string{"outcome"})

	reg.MustRegister(requestsCreated, reassignments, exhausted, notifications)

	return &DispatchMetrics{
		requestsCreated: requestsCreated,
		reassignments:   reassignments,
		exhausted:       exhausted,
		notifications:   notifications,
	}
}

func (m *DispatchMetrics) RequestCreated(status string) {
	if m == nil || m.requestsCreated == nil {
		return
	}
	m.requestsCreated.WithLabelValues(status).Inc()
}

func (m *DispatchMetrics) Reassigned() {
	if m == nil || m.reassignments == nil {
		return
	}
	m.reassignments.Inc()
}

func (m *DispatchMetrics) Exhausted() {
	if m == nil || m.exhausted == nil {
		return
	}
	m.exhausted.Inc()
}

func (m *DispatchMetrics) NotificationOutcome(outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
