package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for TurnsTotal.
const (
	OutcomeOK          = "ok"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

var (
	// RequestsTotal counts HTTP requests by method, route pattern, and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multichat_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "route", "status"})

	// TurnsTotal counts finished turns per model and outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multichat_turns_total",
		Help: "Conversation turns by model and outcome.",
	}, []string{"model", "outcome"})

	// BackendDuration tracks how long each backend takes to produce a full reply.
	BackendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "multichat_backend_duration_seconds",
		Help:    "Time spent waiting for a backend reply.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"backend"})

	// BackendErrors counts adapter failures by backend and kind.
	BackendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "multichat_backend_errors_total",
		Help: "Backend calls that produced no reply.",
	}, []string{"backend", "kind"})

	// QueuedTurns is the number of async turns waiting for a worker.
	QueuedTurns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multichat_queued_turns",
		Help: "Async turns waiting for a worker.",
	})

	// WebSocketConnections is the number of open update sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multichat_websocket_connections",
		Help: "Open WebSocket connections.",
	})
)
