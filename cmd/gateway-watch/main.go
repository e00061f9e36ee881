package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func main() {
	var server string
	var channels string
	var reconnect bool
	var heartbeats bool
	flag.StringVar(&server, "server", "ws://127.0.0.1:8080/ws", "console WebSocket endpoint")
	flag.StringVar(&channels, "channels", "gateways,httproutes,health", "comma-separated channels to subscribe to")
	flag.BoolVar(&reconnect, "reconnect", true, "reconnect when the connection drops")
	flag.BoolVar(&heartbeats, "heartbeats", false, "print heartbeat events")
	flag.Parse()

	target, err := url.Parse(server)
	if err != nil {
		panic(fmt.Errorf("parse %s: %w", server, err))
	}
	q := target.Query()
	q.Set("channels", strings.TrimSpace(channels))
	target.RawQuery = q.Encode()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		done := make(chan struct{})
		conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
		if err != nil {
			fmt.Printf("Dial %s failed: %v\n", target.Redacted(), err)
		} else {
			fmt.Printf("Connected to %s\n", target.Redacted())
			go func() {
				defer close(done)
				watch(conn, heartbeats)
			}()
			select {
			case <-interrupt:
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
				return
			case <-done:
				_ = conn.Close()
			}
		}
		if !reconnect {
			os.Exit(1)
		}
		select {
		case <-interrupt:
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// watch prints events until the connection fails or the server shuts down.
func watch(conn *websocket.Conn, heartbeats bool) {
	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			fmt.Printf("Connection closed: %v\n", err)
			return
		}
		if ev.Type == "heartbeat" && !heartbeats {
			continue
		}
		channel := ev.Channel
		if channel == "" {
			channel = "-"
		}
		fmt.Printf("%s %-10s %-18s %s\n", ev.Timestamp.Format(time.RFC3339), channel, ev.Type, compact(ev.Payload))
		if ev.Type == "shutdown" {
			return
		}
	}
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	const limit = 200
	s := string(raw)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
