// ABOUTME: Tests for the preview websocket hub
// ABOUTME: Connects real websocket clients through httptest
package render

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message %s: %v", data, err)
	}
	return msg.Type, msg.Payload
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubHelloAndFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(Config{Name: "test", Source: &SourceInfo{Kind: "microphone", SampleRate: 48000, Channels: 1}})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	defer conn.Close()

	typ, payload := readMessage(t, conn)
	if typ != TypeHello {
		t.Fatalf("expected hello, got %s", typ)
	}
	var hello Hello
	if err := json.Unmarshal(payload, &hello); err != nil {
		t.Fatalf("bad hello: %v", err)
	}
	if hello.SessionID == "" || hello.ClientID == "" || hello.Version != ProtocolVersion {
		t.Errorf("unexpected hello %+v", hello)
	}
	if hello.Source == nil || hello.Source.Kind != "microphone" {
		t.Errorf("expected source info, got %+v", hello.Source)
	}

	waitForClients(t, hub, 1)

	start := time.UnixMilli(123456)
	hub.Draw(map[string]float64{"rms": 0.5}, start)

	typ, payload = readMessage(t, conn)
	if typ != TypeFrame {
		t.Fatalf("expected frame, got %s", typ)
	}
	var frame struct {
		Tick    uint64             `json:"tick"`
		StartMs int64              `json:"start_ms"`
		Data    map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if frame.Tick != 1 || frame.StartMs != 123456 || frame.Data["rms"] != 0.5 {
		t.Errorf("unexpected frame %+v", frame)
	}
}

func TestHubControlCommand(t *testing.T) {
	defer goleak.VerifyNone(t)

	commands := make(chan ControlCommand, 1)
	hub := NewHub(Config{Control: func(cmd ControlCommand) { commands <- cmd }})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	defer conn.Close()
	readMessage(t, conn) // hello

	msg := Message{Type: TypeControl, Payload: ControlCommand{Command: "volume", Volume: 0.8}}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case cmd := <-commands:
		if cmd.Command != "volume" || cmd.Volume != 0.8 {
			t.Errorf("unexpected command %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("control command not delivered")
	}
}

func TestHubDrawWithoutClients(t *testing.T) {
	hub := NewHub(Config{})
	hub.Draw(1, time.Now())
	if hub.Clients() != 0 {
		t.Errorf("expected no clients, got %d", hub.Clients())
	}
	if err := hub.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestHubClientDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(Config{})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubSetSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(Config{Name: "test"})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.SetSource(&SourceInfo{Kind: "remote-stream", SampleRate: 44100, Channels: 2, Title: "Song"})

	conn := dial(t, srv)
	defer conn.Close()

	_, payload := readMessage(t, conn)
	var hello Hello
	if err := json.Unmarshal(payload, &hello); err != nil {
		t.Fatalf("bad hello: %v", err)
	}
	if hello.Source == nil || hello.Source.Title != "Song" || hello.Source.Channels != 2 {
		t.Errorf("expected updated source, got %+v", hello.Source)
	}
}
