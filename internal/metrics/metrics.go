package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelasin_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kelasin_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelasin_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Socket metrics
	OpenSockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kelasin_open_sockets",
			Help: "Currently connected chat sockets",
		},
	)

	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelasin_socket_events_total",
			Help: "Socket events received, by event type",
		},
		[]string{"event"},
	)

	SocketErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelasin_socket_errors_total",
			Help: "Error events sent back to sockets, by originating event",
		},
		[]string{"event"},
	)

	FanoutResubscribes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kelasin_fanout_resubscribes_total",
			Help: "Times the cross-instance fanout subscription was retried",
		},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelasin_messages_sent_total",
			Help: "Chat messages sent, by message type",
		},
		[]string{"type"},
	)

	MessagesEdited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kelasin_messages_edited_total",
			Help: "Chat messages edited",
		},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kelasin_messages_deleted_total",
			Help: "Chat messages soft-deleted",
		},
	)
)
