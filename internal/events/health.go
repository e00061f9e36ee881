package events

import (
	"context"

	"github.com/anvil-platform/gateway-console/internal/health"
)

// HealthPayload is carried by health.changed events.
type HealthPayload struct {
	Previous health.Status `json:"previous,omitempty"`
	Current  health.Report `json:"current"`
}

// HealthObserver publishes every health transition on the health channel.
func HealthObserver(b *Broadcaster) health.Observer {
	return health.ObserverFunc(func(ctx context.Context, previous, current health.Report) {
		b.Publish(ChannelHealth, NewEvent(TypeHealthChanged, ChannelHealth, HealthPayload{
			Previous: previous.Status,
			Current:  current,
		}))
	})
}
