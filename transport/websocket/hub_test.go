package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/mcp-training/dropmerge/game/engine"
)

func newTestClient(hub *Hub, sessionID string, enc Encoding) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, sendBuffer),
		encoding:  enc,
	}
}

func testState() *engine.GameState {
	state := engine.InitGameStateFromConfig(engine.DefaultConfig())
	state.Grid[0][2] = 8
	state.Score = 200
	state.Energy = 33.3
	state.NextValue = 4
	return state
}

// waitFor polls cond until it holds or a second passes
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels must be initialized")
	}
	if hub.defaultEncoding != EncodingJSON {
		t.Errorf("Expected default encoding json, got %s", hub.defaultEncoding)
	}

	hub = NewHub(WithDefaultEncoding(EncodingMsgpack), WithLogger(zaptest.NewLogger(t)))
	if hub.defaultEncoding != EncodingMsgpack {
		t.Errorf("Expected default encoding msgpack, got %s", hub.defaultEncoding)
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingJSON, false},
		{"json", EncodingJSON, false},
		{"MsgPack", EncodingMsgpack, false},
		{" msgpack ", EncodingMsgpack, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEncoding(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session", EncodingJSON)

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.ClientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.ClientCount("test-session"))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-session", EncodingJSON)

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// A second unregister must not close the channel again
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID, EncodingJSON)
	client2 := newTestClient(hub, sessionID, EncodingMsgpack)

	hub.registerClient(client1)
	hub.registerClient(client2)

	if hub.ClientCount(sessionID) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.ClientCount(sessionID))
	}

	hub.unregisterClient(client1)

	if hub.ClientCount(sessionID) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", hub.ClientCount(sessionID))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := NewHub()
	sessionID := "broadcast-test"

	jsonClient := newTestClient(hub, sessionID, EncodingJSON)
	msgpackClient := newTestClient(hub, sessionID, EncodingMsgpack)
	other := newTestClient(hub, "other-session", EncodingJSON)
	hub.registerClient(jsonClient)
	hub.registerClient(msgpackClient)
	hub.registerClient(other)

	hub.BroadcastToSession(sessionID, testState())
	hub.broadcastMessage(<-hub.broadcast)

	t.Run("json", func(t *testing.T) {
		var message Message
		if err := json.Unmarshal(<-jsonClient.send, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.SessionID != sessionID {
			t.Errorf("Expected sessionID %s, got %s", sessionID, message.SessionID)
		}
		if message.Event != EventStateUpdate {
			t.Errorf("Expected event %q, got %s", EventStateUpdate, message.Event)
		}
		if message.GameState.Grid[0][2] != 8 || message.GameState.Score != 200 {
			t.Error("GameState not correctly transmitted")
		}
	})

	t.Run("msgpack", func(t *testing.T) {
		var message Message
		if err := msgpack.Unmarshal(<-msgpackClient.send, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != EventStateUpdate {
			t.Errorf("Expected event %q, got %s", EventStateUpdate, message.Event)
		}
		if message.GameState.Grid[0][2] != 8 || message.GameState.Energy != 33.3 || message.GameState.NextValue != 4 {
			t.Error("GameState not correctly transmitted")
		}
	})

	if len(other.send) != 0 {
		t.Error("Clients of other sessions must not receive the update")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" {
			t.Errorf("Expected sessionID 'event-test', got %s", message.SessionID)
		}
		if message.Event != "custom-event" {
			t.Errorf("Expected event 'custom-event', got %s", message.Event)
		}
		if message.Data != "test-data" {
			t.Errorf("Expected data 'test-data', got %v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte, 1), encoding: EncodingJSON}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: "one"})
	hub.broadcastMessage(&Message{SessionID: "slow", Event: "two"})

	if hub.ClientCount("slow") != 0 {
		t.Error("Client with a full buffer should be unregistered")
	}
}

func TestHubStopsWithContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := newTestClient(hub, "stop", EncodingJSON)
	hub.register <- client
	cancel()

	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("Hub did not stop")
	}
	if _, ok := <-client.send; ok {
		t.Error("Client channels should be closed on stop")
	}

	// Broadcasting after stop must not block
	hub.BroadcastEvent("stop", "late", nil)
	for i := 0; i < sendBuffer+1; i++ {
		hub.BroadcastToSession("stop", nil)
	}
}

func newWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return server
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "?" + query
}

func TestWebSocketUpgrade(t *testing.T) {
	hub := NewHub(WithLogger(zaptest.NewLogger(t)))
	server := newWSServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "session=ws-test"), nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 1 }, "Expected 1 client in session")

	conn.Close()

	waitFor(t, func() bool { return hub.ClientCount("ws-test") == 0 }, "Session should be cleaned up after WebSocket close")
}

func TestWebSocketRejectsUnknownEncoding(t *testing.T) {
	hub := NewHub()
	server := newWSServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "session=bad&encoding=xml"), nil)
	if err == nil {
		t.Fatal("Expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 response, got %v", resp)
	}
}

func TestWebSocketMessageReceive(t *testing.T) {
	hub := NewHub()
	server := newWSServer(t, hub)

	t.Run("json text frames", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "session=msg-test"), nil)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		defer conn.Close()
		waitFor(t, func() bool { return hub.ClientCount("msg-test") == 1 }, "client not registered")

		hub.BroadcastToSession("msg-test", testState())

		conn.SetReadDeadline(time.Now().Add(time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read WebSocket message: %v", err)
		}
		if kind != websocket.TextMessage {
			t.Errorf("Expected text frame, got %d", kind)
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.SessionID != "msg-test" || message.GameState.Score != 200 {
			t.Errorf("Unexpected message %+v", message)
		}
	})

	t.Run("msgpack binary frames", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "session=bin-test&encoding=msgpack"), nil)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		defer conn.Close()
		waitFor(t, func() bool { return hub.ClientCount("bin-test") == 1 }, "client not registered")

		hub.BroadcastEvent("bin-test", "merge", map[string]int{"value": 16})

		conn.SetReadDeadline(time.Now().Add(time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read WebSocket message: %v", err)
		}
		if kind != websocket.BinaryMessage {
			t.Errorf("Expected binary frame, got %d", kind)
		}

		var message Message
		if err := msgpack.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != "merge" {
			t.Errorf("Expected event merge, got %s", message.Event)
		}
		payload, ok := message.Data.(map[string]any)
		if !ok {
			t.Fatalf("Expected map payload, got %T", message.Data)
		}
		if fmt.Sprint(payload["value"]) != "16" {
			t.Errorf("Expected value 16, got %v (%T)", payload["value"], payload["value"])
		}
	})
}

func TestHubBroadcastsStateAsOfEachMove(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	client := newTestClient(hub, "abcd", EncodingJSON)
	hub.register <- client

	e, err := engine.NewEngine(engine.DefaultConfig(), engine.WithRandomSource(engine.NewSeededSource(3)))
	if err != nil {
		t.Fatal(err)
	}

	type snapshot struct{ moves, score int }
	const moves = 60
	want := make([]snapshot, 0, moves)
	for i := 0; i < moves; i++ {
		// the hub encodes on its own goroutine while the next move runs
		if _, err := e.Drop(i % 4); errors.Is(err, engine.ErrGameOver) {
			e.Reset()
		}
		state := e.GetState()
		want = append(want, snapshot{state.TotalMoves, state.Score})
		hub.BroadcastToSession("abcd", state)
	}

	for i := 0; i < moves; i++ {
		var data []byte
		select {
		case data = <-client.send:
		case <-time.After(time.Second):
			t.Fatalf("Frame %d never arrived", i)
		}
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
		got := snapshot{message.GameState.TotalMoves, message.GameState.Score}
		if got != want[i] {
			t.Errorf("Frame %d: expected %+v, got %+v", i, want[i], got)
		}
	}
}
