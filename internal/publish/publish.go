// Package publish mirrors console events onto an external message bus.
package publish

import "context"

// Publisher is the minimal event-publishing seam.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// DefaultSubjectPrefix is prepended to the channel name of every mirrored
// event, giving subjects such as "gwconsole.gateways".
const DefaultSubjectPrefix = "gwconsole"

// Subject joins prefix and channel into a bus subject.
func Subject(prefix, channel string) string {
	if prefix == "" {
		return channel
	}
	return prefix + "." + channel
}
