package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/sets"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/gateway-console/internal/apperr"
	"github.com/anvil-platform/gateway-console/internal/events"
)

// Client control actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// codeRateLimited is sent when a client exceeds its control-message budget.
const codeRateLimited = "RateLimited"

// ClientMessage is a control message sent by a WebSocket client.
type ClientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
}

type WebSocketOptions struct {
	// MaxMessageBytes caps a single client message.
	MaxMessageBytes int64
	// WriteTimeout bounds a single frame write to a client.
	WriteTimeout time.Duration
	// ControlRate and ControlBurst limit control messages per connection.
	ControlRate  rate.Limit
	ControlBurst int
	// AllowedOrigins lists accepted Origin headers. Empty keeps the default
	// same-origin check. Requests without an Origin header are always accepted.
	AllowedOrigins []string
}

func (o WebSocketOptions) withDefaults() WebSocketOptions {
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4096
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ControlRate <= 0 {
		o.ControlRate = 5
	}
	if o.ControlBurst <= 0 {
		o.ControlBurst = 10
	}
	return o
}

func (o WebSocketOptions) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(o.AllowedOrigins) > 0 {
		allowed := sets.New(o.AllowedOrigins...)
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed.Has(origin)
		}
	}
	return u
}

// closeFrameTimeout bounds the close frame sent by wsTransport.Close. A
// client that stopped reading never gets it, so it must stay short.
const closeFrameTimeout = 250 * time.Millisecond

// wsTransport writes events as JSON text frames. Sends are serialized by mu;
// Close only flips closed under mu and then closes the connection, which
// fails a Send blocked on a client that stopped reading.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (t *wsTransport) Send(ev events.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return websocket.ErrCloseSent
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteJSON(ev)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	timeout := closeFrameTimeout
	if t.writeTimeout > 0 && t.writeTimeout < timeout {
		timeout = t.writeTimeout
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
	return t.conn.Close()
}

// handleWebSocket upgrades the request, registers the connection as a
// subscriber and serves its control messages until it goes away. Channels
// listed in ?channels=a,b are joined right after the initial state.
func (s *Server) handleWebSocket(c *gin.Context) {
	logger := logf.FromContext(c.Request.Context())
	conn, err := s.opts.WebSocket.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.V(1).Info("websocket upgrade failed", "error", err.Error())
		return
	}
	conn.SetReadLimit(s.opts.WebSocket.MaxMessageBytes)

	id := uuid.NewString()
	logger = logger.WithValues("subscriber", id)
	t := &wsTransport{conn: conn, writeTimeout: s.opts.WebSocket.WriteTimeout}
	if err := s.hub.Connect(c.Request.Context(), id, t); err != nil {
		logger.Error(err, "failed to register subscriber")
		_ = t.Send(events.NewEvent(events.TypeError, "", events.ErrorPayload{Code: apperr.Code(err), Message: err.Error()}))
		_ = t.Close()
		return
	}
	defer s.hub.Disconnect(id)

	for _, channel := range splitChannels(c.Query("channels")) {
		s.control(logger, id, ClientMessage{Action: ActionSubscribe, Channel: channel})
	}

	limiter := rate.NewLimiter(s.opts.WebSocket.ControlRate, s.opts.WebSocket.ControlBurst)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.V(1).Info("websocket closed unexpectedly", "error", err.Error())
			}
			return
		}
		if !limiter.Allow() {
			s.reply(logger, id, events.NewEvent(events.TypeError, "", events.ErrorPayload{
				Code:    codeRateLimited,
				Message: "too many control messages",
			}))
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.replyError(logger, id, apperr.Wrap(apperr.KindValidation, err, "malformed control message"))
			continue
		}
		s.control(logger, id, msg)
	}
}

func (s *Server) control(logger logr.Logger, id string, msg ClientMessage) {
	var err error
	switch msg.Action {
	case ActionSubscribe:
		err = s.hub.Subscribe(id, msg.Channel)
	case ActionUnsubscribe:
		err = s.hub.Unsubscribe(id, msg.Channel)
	case ActionPing:
		s.reply(logger, id, events.NewEvent(events.TypePong, "", nil))
		return
	default:
		err = apperr.Validation("unknown action %q", msg.Action)
	}
	if err != nil {
		s.replyError(logger, id, err)
	}
}

func (s *Server) replyError(logger logr.Logger, id string, err error) {
	s.reply(logger, id, events.NewEvent(events.TypeError, "", events.ErrorPayload{
		Code:    apperr.Code(err),
		Message: err.Error(),
	}))
}

func (s *Server) reply(logger logr.Logger, id string, ev events.Event) {
	if err := s.hub.PublishToSubscriber(id, ev); err != nil {
		logger.V(1).Info("dropped reply", "type", ev.Type, "error", err.Error())
	}
}

func splitChannels(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
