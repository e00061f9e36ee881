package events

// Transport delivers events to one subscriber. Send is only ever called from
// the subscriber's writer goroutine; Close may be called concurrently with
// Send and must unblock it.
type Transport interface {
	Send(ev Event) error
	Close() error
}

// TransportFunc adapts a function to a Transport with a no-op Close.
type TransportFunc func(ev Event) error

func (f TransportFunc) Send(ev Event) error { return f(ev) }

func (f TransportFunc) Close() error { return nil }
