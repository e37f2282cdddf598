package realtime

import (
	"context"

	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/metrics"
)

// Notifier is what services need from the push side.
type Notifier interface {
	Deliver(ctx context.Context, userID string, event Event) bool
	DeliverMany(ctx context.Context, userIDs []string, event Event) int
}

// Router fans events out to every live channel of a user. Delivery is
// best-effort: a true result means channels existed, not that the client
// received anything. Clients converge through polling.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Deliver pushes event to all of userID's channels. A channel whose Send
// fails is closed and unregistered before Deliver returns; the remaining
// channels still receive the event.
func (r *Router) Deliver(ctx context.Context, userID string, event Event) bool {
	name := string(event.EventName())
	channels := r.registry.ChannelsFor(userID)
	if len(channels) == 0 {
		metrics.Deliveries.WithLabelValues(name, "offline").Inc()
		return false
	}

	for _, ch := range channels {
		if err := ch.Send(event); err != nil {
			metrics.ChannelWriteFailures.WithLabelValues(name).Inc()
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("user_id", userID).
				Str("channel_id", ch.ID()).
				Str("event", name).
				Msg("channel send failed, dropping channel")
			r.registry.Unregister(userID, ch)
			ch.Close()
		}
	}

	metrics.Deliveries.WithLabelValues(name, "attempted").Inc()
	return true
}

// DeliverMany calls Deliver for each user and returns how many had channels.
func (r *Router) DeliverMany(ctx context.Context, userIDs []string, event Event) int {
	reached := 0
	for _, id := range userIDs {
		if r.Deliver(ctx, id, event) {
			reached++
		}
	}
	return reached
}
