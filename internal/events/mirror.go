package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anvil-platform/gateway-console/internal/publish"
)

// PublisherTransport forwards domain events to a message bus, one subject per
// channel. Bookkeeping events such as heartbeats are ignored. Attach it to a
// Broadcaster like any other subscriber so a slow bus never blocks
// publishers.
type PublisherTransport struct {
	Publisher publish.Publisher
	Prefix    string
	Timeout   time.Duration
}

var _ Transport = &PublisherTransport{}

func (t *PublisherTransport) Send(ev Event) error {
	if !ev.IsDomain() || ev.Channel == "" {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	ctx := context.Background()
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	return t.Publisher.Publish(ctx, publish.Subject(t.Prefix, ev.Channel), data)
}

func (t *PublisherTransport) Close() error {
	return t.Publisher.Close()
}
