// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry
	LiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_live_channels",
			Help: "Number of registered push channels",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Number of users with at least one live channel",
		},
	)

	ChannelsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_channels_reaped_total",
			Help: "Channels removed by the liveness sweep",
		},
	)

	// Router
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Fan-out attempts by event and result",
		},
		[]string{"event", "result"}, // "attempted", "offline"
	)

	ChannelWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_channel_write_failures_total",
			Help: "Per-channel send failures during fan-out",
		},
		[]string{"event"},
	)

	InboundRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inbound_rejected_total",
			Help: "Inbound frames rejected at the transport boundary",
		},
		[]string{"reason"},
	)

	// Sweeper
	MessagesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_dispatched_total",
			Help: "Scheduled messages flipped to dispatched",
		},
		[]string{"kind"}, // "direct", "group"
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_sweep_duration_seconds",
			Help:    "Duration of scheduled-dispatch sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sweep_failures_total",
			Help: "Sweeps that failed or were skipped",
		},
		[]string{"reason"}, // "store", "breaker_open"
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_sweep_breaker_state",
			Help: "Sweeper circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// Unread
	GroupCounterUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_group_unread_updates_total",
			Help: "Group unread counter updates by operation",
		},
		[]string{"op"}, // "increment", "reset"
	)
)

// ObserveSweep records a sweep duration.
func ObserveSweep(start time.Time) {
	SweepDuration.Observe(time.Since(start).Seconds())
}
