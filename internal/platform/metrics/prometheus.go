package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the client engine
type Metrics struct {
	// Request layer metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RetriesTotal    *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec

	// Notification sync metrics
	RefreshesTotal  *prometheus.CounterVec
	PushEventsTotal *prometheus.CounterVec
	SuppressedTotal prometheus.Counter
	UnreadCount     prometheus.Gauge

	// Action metrics
	ActionsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"method", "path"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_retries_total",
				Help:      "Total number of request retry attempts",
			},
			[]string{"path"},
		),
		RequestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_errors_total",
				Help:      "Total number of failed requests by error kind",
			},
			[]string{"kind"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_refreshes_total",
				Help:      "Total number of notification refresh operations",
			},
			[]string{"outcome"},
		),
		PushEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_events_total",
				Help:      "Total number of push events by disposition",
			},
			[]string{"disposition"},
		),
		SuppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_suppressed_total",
				Help:      "Total number of review-required notifications suppressed",
			},
		),
		UnreadCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifications_unread",
				Help:      "Current unread notification count after role filtering",
			},
		),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_actions_total",
				Help:      "Total number of notification actions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RetriesTotal,
		m.RequestErrors,
		m.RefreshesTotal,
		m.PushEventsTotal,
		m.SuppressedTotal,
		m.UnreadCount,
		m.ActionsTotal,
	)

	return m
}
