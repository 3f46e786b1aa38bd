package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics covers outbound API calls and the client-side session and
// note state machines.
type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestInFlight  prometheus.Gauge
	sessionTeardowns *prometheus.CounterVec
	staleResponses   *prometheus.CounterVec
	noteEventsTotal  *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notepeel",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total outbound API requests by operation and status. Status 0 means no response.",
		},
		[]string{"service", "operation", "method", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notepeel",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Outbound API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "operation"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notepeel",
			Subsystem: "api",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight outbound API requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sessionTeardowns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notepeel",
			Subsystem: "session",
			Name:      "teardowns_total",
			Help:      "Total session teardowns by reason.",
		},
		[]string{"service", "reason"},
	)
	staleResponses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notepeel",
			Subsystem: "notes",
			Name:      "stale_responses_total",
			Help:      "Total note responses discarded because a newer request superseded them.",
		},
		[]string{"service"},
	)
	noteEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notepeel",
			Subsystem: "notes",
			Name:      "events_total",
			Help:      "Total note events received by type.",
		},
		[]string{"service", "type"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "notepeel",
			Subsystem: "api",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, sessionTeardowns, staleResponses, noteEventsTotal, breakerState)

	return &ClientMetrics{
		registry:         registry,
		service:          service,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		sessionTeardowns: sessionTeardowns,
		staleResponses:   staleResponses,
		noteEventsTotal:  noteEventsTotal,
		breakerState:     breakerState,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartRequest marks a request in flight and returns the function that
// records its outcome.
func (m *ClientMetrics) StartRequest(operation, method string) func(status int) {
	m.requestInFlight.Inc()
	started := time.Now()
	return func(status int) {
		m.requestInFlight.Dec()
		m.requestTotal.WithLabelValues(m.service, operation, method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(m.service, operation).Observe(time.Since(started).Seconds())
	}
}

func (m *ClientMetrics) RecordTeardown(reason string) {
	m.sessionTeardowns.WithLabelValues(m.service, reason).Inc()
}

func (m *ClientMetrics) RecordStaleResponse() {
	m.staleResponses.WithLabelValues(m.service).Inc()
}

func (m *ClientMetrics) RecordNoteEvent(eventType string) {
	m.noteEventsTotal.WithLabelValues(m.service, eventType).Inc()
}

// RecordBreakerState takes the breaker's state name: "closed", "half-open" or "open".
func (m *ClientMetrics) RecordBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
