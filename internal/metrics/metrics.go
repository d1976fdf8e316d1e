package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubConnectedSessions tracks the number of live WebSocket sessions.
	HubConnectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_sessions",
			Help: "Number of connected WebSocket sessions",
		},
	)

	// HubActiveGroups tracks the number of interest groups with at least one member.
	HubActiveGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_groups",
			Help: "Number of interest groups with at least one member",
		},
	)

	// HubCommandChannelDepth tracks the hub actor's command backlog.
	HubCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_command_channel_depth",
			Help: "Current depth of the hub command channel",
		},
	)

	// HubSlowClientsEvicted counts clients dropped because their send buffer was full.
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total slow WebSocket clients evicted due to full send buffer",
		},
	)

	// HubStopTimeoutsTotal counts shutdowns where the hub missed its stop deadline.
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_stop_timeouts_total",
			Help: "Total hub shutdowns that exceeded the stop timeout",
		},
	)
)

// Notification metrics
var (
	// NotificationsSentTotal counts per-recipient deliveries handed to a writer.
	NotificationsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total item update notifications enqueued for delivery",
		},
	)

	// NotificationsDroppedTotal counts per-recipient deliveries dropped.
	NotificationsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total item update notifications dropped (slow or gone recipient)",
		},
	)

	// NotifyFanoutDuration tracks time spent fanning one update out to a group.
	NotifyFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notify_fanout_duration_seconds",
			Help:    "Duration of one notify fan-out over a group",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
)

// WebSocket writer metrics
var (
	// WebSocketMessageSendDuration tracks single message write latency.
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "Duration of a single WebSocket message write",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// WebSocketPingFailures counts failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures",
		},
	)

	// WebSocketIdleDisconnects counts connections closed for inactivity.
	WebSocketIdleDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_idle_disconnects_total",
			Help: "Total WebSocket connections closed due to idle timeout",
		},
	)
)

// HTTP layer metrics
var (
	// ConnectionsRejectedTotal counts WebSocket connections rejected by limits.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "Total WebSocket connections rejected, by limit reason",
		},
		[]string{"reason"},
	)

	// StateChangesTotal counts accepted mutation requests by resulting state.
	StateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_changes_total",
			Help: "Total accepted item state changes, by new state",
		},
		[]string{"state"},
	)
)
