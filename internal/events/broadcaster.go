package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/anvil-platform/gateway-console/internal/apperr"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultShutdownGrace     = 2 * time.Second
	DefaultBufferSize        = 64
)

// InitialStateFunc loads the snapshot sent to a subscriber right after it
// connects.
type InitialStateFunc func(ctx context.Context) (any, error)

type Options struct {
	HeartbeatInterval time.Duration
	ShutdownGrace     time.Duration
	// BufferSize is the capacity of each subscriber's outbox.
	BufferSize int
	// Channels subscribers may join. Empty means DefaultChannels.
	Channels     []string
	InitialState InitialStateFunc
	Clock        clock.WithTicker
}

// Broadcaster owns the subscription registry. The registry is only mutated
// under mu; publishers snapshot it and deliver outside the lock.
type Broadcaster struct {
	opts     Options
	log      logr.Logger
	channels map[string]struct{}

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

func NewBroadcaster(log logr.Logger, opts Options) *Broadcaster {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.ShutdownGrace < 0 {
		opts.ShutdownGrace = 0
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if len(opts.Channels) == 0 {
		opts.Channels = DefaultChannels()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	b := &Broadcaster{
		opts:        opts,
		log:         log,
		channels:    make(map[string]struct{}, len(opts.Channels)),
		subscribers: map[string]*subscriber{},
	}
	for _, c := range opts.Channels {
		b.channels[c] = struct{}{}
	}
	return b
}

// Channels returns the channels subscribers may join, sorted.
func (b *Broadcaster) Channels() []string {
	out := make([]string, 0, len(b.channels))
	for c := range b.channels {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (b *Broadcaster) register(id string, t Transport, channels []string) (*subscriber, error) {
	if id == "" {
		return nil, apperr.Validation("subscriber id must not be empty")
	}
	for _, c := range channels {
		if _, ok := b.channels[c]; !ok {
			return nil, apperr.Validation("unknown channel %q", c)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, apperr.New(apperr.KindUnavailable, "broadcaster is shutting down")
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, apperr.Conflict("subscriber %q is already connected", id)
	}
	s := newSubscriber(id, t, b.opts.BufferSize)
	for _, c := range channels {
		s.channels[c] = struct{}{}
	}
	b.subscribers[id] = s
	subscribersGauge.Set(float64(len(b.subscribers)))
	go s.run(b.log)
	return s, nil
}

// Connect registers a subscriber with no channel subscriptions, sends it a
// connected notice and then the initial state. If loading the initial state
// fails, the subscriber receives an error event and stays connected.
func (b *Broadcaster) Connect(ctx context.Context, id string, t Transport) error {
	s, err := b.register(id, t, nil)
	if err != nil {
		return err
	}
	logger := b.log.WithValues("subscriber", id)
	logger.Info("subscriber connected")

	b.deliver(s, NewEvent(TypeConnected, "", ConnectedPayload{SubscriberID: id, Channels: b.Channels()}))

	if b.opts.InitialState == nil {
		return nil
	}
	state, err := b.opts.InitialState(ctx)
	if err != nil {
		logger.Error(err, "failed to load initial state")
		b.deliver(s, NewEvent(TypeError, "", ErrorPayload{
			Code:    apperr.Code(err),
			Message: "failed to load initial state: " + err.Error(),
		}))
		return nil
	}
	b.deliver(s, NewEvent(TypeInitialState, "", state))
	return nil
}

// Attach registers an internal subscriber already joined to channels. It gets
// neither a connected notice nor the initial state.
func (b *Broadcaster) Attach(id string, t Transport, channels ...string) error {
	_, err := b.register(id, t, channels)
	if err == nil {
		b.log.V(1).Info("attached internal subscriber", "subscriber", id, "channels", channels)
	}
	return err
}

// Disconnect removes a subscriber and closes its transport. It reports
// whether the subscriber was registered.
func (b *Broadcaster) Disconnect(id string) bool {
	b.mu.Lock()
	s, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		subscribersGauge.Set(float64(len(b.subscribers)))
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	if err := s.close(); err != nil {
		b.log.V(1).Info("error closing transport", "subscriber", id, "error", err.Error())
	}
	b.log.Info("subscriber disconnected", "subscriber", id)
	return true
}

// Subscribe joins id to channel and acknowledges with a subscribed event.
// Subscribing twice is not an error.
func (b *Broadcaster) Subscribe(id, channel string) error {
	return b.updateSubscription(id, channel, true)
}

// Unsubscribe removes id from channel and acknowledges with an unsubscribed
// event. Leaving a channel that was never joined is not an error.
func (b *Broadcaster) Unsubscribe(id, channel string) error {
	return b.updateSubscription(id, channel, false)
}

func (b *Broadcaster) updateSubscription(id, channel string, join bool) error {
	if _, ok := b.channels[channel]; !ok {
		return apperr.Validation("unknown channel %q", channel)
	}
	b.mu.Lock()
	s, ok := b.subscribers[id]
	if !ok {
		b.mu.Unlock()
		return apperr.NotFound("subscriber %q is not connected", id)
	}
	evType := TypeSubscribed
	if join {
		s.channels[channel] = struct{}{}
	} else {
		delete(s.channels, channel)
		evType = TypeUnsubscribed
	}
	current := s.channelList()
	b.mu.Unlock()

	sort.Strings(current)
	b.log.V(1).Info("subscription changed", "subscriber", id, "channel", channel, "joined", join)
	b.deliver(s, NewEvent(evType, channel, SubscriptionPayload{Channel: channel, Channels: current}))
	return nil
}

// Subscribers returns the ids of all connected subscribers, sorted.
func (b *Broadcaster) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.subscribers))
	for id := range b.subscribers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SubscribedChannels returns the channels id has joined, sorted.
func (b *Broadcaster) SubscribedChannels(id string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.subscribers[id]
	if !ok {
		return nil, apperr.NotFound("subscriber %q is not connected", id)
	}
	out := s.channelList()
	sort.Strings(out)
	return out, nil
}

// Publish hands ev to every subscriber of channel and returns how many
// accepted it. The event's channel is set to channel.
func (b *Broadcaster) Publish(channel string, ev Event) int {
	ev.Channel = channel
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.opts.Clock.Now().UTC()
	}
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if _, ok := s.channels[channel]; ok {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()
	return b.fanOut(targets, ev)
}

// PublishToAll hands ev to every connected subscriber regardless of channel.
func (b *Broadcaster) PublishToAll(ev Event) int {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.opts.Clock.Now().UTC()
	}
	return b.fanOut(b.snapshot(), ev)
}

// PublishToSubscriber hands ev to a single subscriber.
func (b *Broadcaster) PublishToSubscriber(id string, ev Event) error {
	b.mu.RLock()
	s, ok := b.subscribers[id]
	b.mu.RUnlock()
	if !ok {
		return apperr.NotFound("subscriber %q is not connected", id)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.opts.Clock.Now().UTC()
	}
	if !b.deliver(s, ev) {
		return apperr.New(apperr.KindUnavailable, "subscriber %q is not accepting events", id)
	}
	return nil
}

func (b *Broadcaster) snapshot() []*subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		out = append(out, s)
	}
	return out
}

func (b *Broadcaster) fanOut(targets []*subscriber, ev Event) int {
	eventsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()
	n := 0
	for _, s := range targets {
		if b.deliver(s, ev) {
			n++
		}
	}
	return n
}

func (b *Broadcaster) deliver(s *subscriber, ev Event) bool {
	if s.offer(ev) {
		return true
	}
	eventsDroppedTotal.WithLabelValues(string(ev.Type), "buffer_full").Inc()
	b.log.Info("dropped event for subscriber", "subscriber", s.id, "type", ev.Type, "channel", ev.Channel)
	return false
}

// Run sends a heartbeat to every subscriber each HeartbeatInterval until ctx
// is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := b.opts.Clock.NewTicker(b.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			n := b.PublishToAll(Event{Type: TypeHeartbeat})
			b.log.V(1).Info("heartbeat sent", "subscribers", n)
		}
	}
}

// Shutdown notifies every subscriber, waits for the grace period (or until
// ctx is done), then closes all transports and clears the registry. New
// connections are rejected from the moment Shutdown starts.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	n := b.PublishToAll(Event{Type: TypeShutdown, Payload: map[string]string{"message": "server is shutting down"}})
	b.log.Info("notified subscribers of shutdown", "subscribers", n, "grace", b.opts.ShutdownGrace)

	if b.opts.ShutdownGrace > 0 {
		select {
		case <-ctx.Done():
		case <-b.opts.Clock.After(b.opts.ShutdownGrace):
		}
	}

	b.mu.Lock()
	remaining := b.subscribers
	b.subscribers = map[string]*subscriber{}
	subscribersGauge.Set(0)
	b.mu.Unlock()

	var wg sync.WaitGroup
	for id, s := range remaining {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.close(); err != nil {
				b.log.V(1).Info("error closing transport", "subscriber", id, "error", err.Error())
			}
		}()
	}
	wg.Wait()
	b.log.Info("closed all subscribers", "count", len(remaining))
	return nil
}
