package events

import (
	"sync"

	"github.com/go-logr/logr"
)

type subscriber struct {
	id        string
	transport Transport
	// channels is guarded by Broadcaster.mu.
	channels map[string]struct{}

	outbox    chan Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(id string, t Transport, buffer int) *subscriber {
	return &subscriber{
		id:        id,
		transport: t,
		channels:  map[string]struct{}{},
		outbox:    make(chan Event, buffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// offer hands ev to the writer without blocking. It reports false when the
// outbox is full or the subscriber is closed.
func (s *subscriber) offer(ev Event) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.outbox <- ev:
		return true
	default:
		return false
	}
}

// run drains the outbox until the subscriber is closed.
func (s *subscriber) run(log logr.Logger) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.outbox:
			if err := s.transport.Send(ev); err != nil {
				eventsDroppedTotal.WithLabelValues(string(ev.Type), "send_failed").Inc()
				log.Error(err, "failed to deliver event", "subscriber", s.id, "type", ev.Type, "channel", ev.Channel)
				continue
			}
			eventsDeliveredTotal.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}

// close stops the writer and closes the transport. It is safe to call more
// than once.
func (s *subscriber) close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		err = s.transport.Close()
	})
	return err
}

func (s *subscriber) channelList() []string {
	out := make([]string, 0, len(s.channels))
	for c := range s.channels {
		out = append(out, c)
	}
	return out
}
