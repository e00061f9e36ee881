// Package events fans domain events out to connected dashboard subscribers.
//
// Every subscriber owns a bounded outbox drained by a single writer goroutine,
// so a slow or failing transport never blocks a publisher or another
// subscriber. Delivery is at most once while connected; there is no replay.
package events

import (
	"time"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
)

// Type identifies the kind of an Event.
type Type string

const (
	TypeResourceCreated Type = "resource.created"
	TypeResourceUpdated Type = "resource.updated"
	TypeResourceDeleted Type = "resource.deleted"
	TypeInitialState    Type = "initial_state"
	TypeHeartbeat       Type = "heartbeat"
	TypeShutdown        Type = "shutdown"
	TypeError           Type = "error"
	TypeConnected       Type = "connected"
	TypeSubscribed      Type = "subscribed"
	TypeUnsubscribed    Type = "unsubscribed"
	TypeHealthChanged   Type = "health.changed"
	TypePong            Type = "pong"
)

const (
	ChannelGateways   = "gateways"
	ChannelHTTPRoutes = "httproutes"
	ChannelHealth     = "health"
)

// DefaultChannels are the channels subscribers may join.
func DefaultChannels() []string {
	return []string{ChannelGateways, ChannelHTTPRoutes, ChannelHealth}
}

// ChannelFor returns the channel carrying events for kind.
func ChannelFor(kind consolev1.Kind) string {
	switch kind {
	case consolev1.KindGateway:
		return ChannelGateways
	case consolev1.KindHTTPRoute:
		return ChannelHTTPRoutes
	default:
		return ""
	}
}

// Event is immutable once published.
type Event struct {
	Type      Type      `json:"type"`
	Channel   string    `json:"channel,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent returns an event stamped with the current time.
func NewEvent(t Type, channel string, payload any) Event {
	return Event{Type: t, Channel: channel, Payload: payload, Timestamp: time.Now().UTC()}
}

// IsDomain reports whether e describes a change of cluster or system state,
// as opposed to connection bookkeeping.
func (e Event) IsDomain() bool {
	switch e.Type {
	case TypeResourceCreated, TypeResourceUpdated, TypeResourceDeleted, TypeHealthChanged:
		return true
	default:
		return false
	}
}

// ErrorPayload is carried by error events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectedPayload is carried by the connected notice.
type ConnectedPayload struct {
	SubscriberID string   `json:"subscriberId"`
	Channels     []string `json:"channels"`
}

// SubscriptionPayload acknowledges subscribe and unsubscribe requests.
type SubscriptionPayload struct {
	Channel  string   `json:"channel"`
	Channels []string `json:"channels"`
}
