package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/events"
)

type wireEvent struct {
	Type    events.Type     `json:"type"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// nextOfType skips heartbeats and other bookkeeping until an event of type
// want arrives.
func nextOfType(t *testing.T, conn *websocket.Conn, want events.Type) wireEvent {
	t.Helper()
	for i := 0; i < 10; i++ {
		if ev := next(t, conn); ev.Type == want {
			return ev
		}
	}
	t.Fatalf("no %s event received", want)
	return wireEvent{}
}

func TestWebSocket_ConnectReceivesInitialState(t *testing.T) {
	env := newTestEnv(t, Options{}, testGateway("team-a", "edge"))
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "")

	connected := next(t, conn)
	require.Equal(t, events.TypeConnected, connected.Type)
	var hello events.ConnectedPayload
	require.NoError(t, json.Unmarshal(connected.Payload, &hello))
	assert.NotEmpty(t, hello.SubscriberID)
	assert.ElementsMatch(t, events.DefaultChannels(), hello.Channels)

	initial := next(t, conn)
	require.Equal(t, events.TypeInitialState, initial.Type)
	var snap consolev1.Snapshot
	require.NoError(t, json.Unmarshal(initial.Payload, &snap))
	require.Len(t, snap.Gateways, 1)
	assert.Equal(t, "edge", snap.Gateways[0].Name)
	assert.Empty(t, snap.HTTPRoutes)
	assert.Empty(t, snap.Errors)
}

func TestWebSocket_SubscribedClientSeesMutations(t *testing.T) {
	env := newTestEnv(t, Options{})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "?channels=gateways")
	nextOfType(t, conn, events.TypeSubscribed)

	body, err := json.Marshal(testGateway("team-a", "edge"))
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/v1/gateways", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev := nextOfType(t, conn, events.TypeResourceCreated)
	assert.Equal(t, events.ChannelGateways, ev.Channel)
	var payload consolev1.ResourceEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, consolev1.KindGateway, payload.Kind)
	assert.Equal(t, "edge", payload.Name)
	require.NotNil(t, payload.Resource)
}

func TestWebSocket_ControlMessages(t *testing.T) {
	env := newTestEnv(t, Options{})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "")
	nextOfType(t, conn, events.TypeInitialState)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: events.ChannelHTTPRoutes}))
	ack := nextOfType(t, conn, events.TypeSubscribed)
	var sub events.SubscriptionPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &sub))
	assert.Equal(t, []string{events.ChannelHTTPRoutes}, sub.Channels)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionUnsubscribe, Channel: events.ChannelHTTPRoutes}))
	ack = nextOfType(t, conn, events.TypeUnsubscribed)
	require.NoError(t, json.Unmarshal(ack.Payload, &sub))
	assert.Empty(t, sub.Channels)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionPing}))
	nextOfType(t, conn, events.TypePong)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: "pods"}))
	errEv := nextOfType(t, conn, events.TypeError)
	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(errEv.Payload, &payload))
	assert.Equal(t, "ValidationFailed", payload.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	errEv = nextOfType(t, conn, events.TypeError)
	require.NoError(t, json.Unmarshal(errEv.Payload, &payload))
	assert.Equal(t, "ValidationFailed", payload.Code)
}

func TestWebSocket_ControlMessagesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{WebSocket: WebSocketOptions{ControlRate: 0.001, ControlBurst: 1}})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "")
	nextOfType(t, conn, events.TypeInitialState)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionPing}))
	nextOfType(t, conn, events.TypePong)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionPing}))
	errEv := nextOfType(t, conn, events.TypeError)
	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(errEv.Payload, &payload))
	assert.Equal(t, codeRateLimited, payload.Code)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, Options{})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "")
	nextOfType(t, conn, events.TypeInitialState)
	require.Len(t, env.hub.Subscribers(), 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return len(env.hub.Subscribers()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocket_ShutdownNotifiesClients(t *testing.T) {
	env := newTestEnv(t, Options{})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dial(t, srv, "")
	nextOfType(t, conn, events.TypeInitialState)

	go func() { _ = env.hub.Shutdown(context.Background()) }()
	nextOfType(t, conn, events.TypeShutdown)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, Options{WebSocket: WebSocketOptions{AllowedOrigins: []string{"https://console.example.com"}}})
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWSTransport_CloseUnblocksStalledSend(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	defer srv.Close()

	// The client never reads, so the server's socket buffers fill up.
	dial(t, srv, "")

	var serverConn *websocket.Conn
	select {
	case serverConn = <-conns:
	case <-time.After(5 * time.Second):
		t.Fatal("server side of the connection was never upgraded")
	}
	tr := &wsTransport{conn: serverConn, writeTimeout: 10 * time.Second}

	big := events.NewEvent(events.TypeHeartbeat, "", strings.Repeat("x", 1<<20))
	sendDone := make(chan error, 1)
	go func() {
		for {
			if err := tr.Send(big); err != nil {
				sendDone <- err
				return
			}
		}
	}()

	time.Sleep(500 * time.Millisecond)
	start := time.Now()
	require.NoError(t, tr.Close())
	assert.Less(t, time.Since(start), 2*time.Second, "Close waited behind a stalled Send")

	select {
	case err := <-sendDone:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Send still blocked after Close")
	}
	assert.ErrorIs(t, tr.Send(big), websocket.ErrCloseSent)
}

