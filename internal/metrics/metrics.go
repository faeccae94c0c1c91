package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizhub_ws_connections_active",
		Help: "The current number of live WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizhub_ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	RegisteredClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizhub_registered_clients",
		Help: "The current number of known durable client identities.",
	})

	// Message metrics
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizhub_ws_messages_received_total",
		Help: "The total number of push-channel requests received.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizhub_ws_messages_sent_total",
		Help: "The total number of push-channel frames sent.",
	})
	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizhub_broadcasts_sent_total",
		Help: "The total number of broadcast deliveries, by event name.",
	}, []string{"event"})

	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizhub_sessions_active",
		Help: "The current number of active sessions.",
	})
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizhub_session_events_total",
		Help: "The total number of session lifecycle events, by type.",
	}, []string{"type"})
)
