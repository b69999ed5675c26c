// ABOUTME: Tests for the feed client
// ABOUTME: Connects to a real hub over httptest
package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Resonate-Protocol/resonate-scope/pkg/render"
)

func startHub(config render.Config) (*render.Hub, string, func()) {
	hub := render.NewHub(config)
	srv := httptest.NewServer(hub)
	stop := func() {
		srv.Close()
		hub.Close()
	}
	return hub, strings.TrimPrefix(srv.URL, "http://"), stop
}

func TestNewClient(t *testing.T) {
	c := NewClient(Config{Addr: "localhost:8927"})
	if c.config.Path != "/feed" {
		t.Errorf("expected default path /feed, got %s", c.config.Path)
	}
	if c.Close() != nil {
		t.Error("closing an unconnected client should not fail")
	}
}

func TestClientReceivesFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, addr, stop := startHub(render.Config{Name: "scope", SessionID: "session-1"})
	defer stop()

	c := NewClient(Config{Addr: addr})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if c.Hello().SessionID != "session-1" || c.Hello().Name != "scope" {
		t.Errorf("unexpected hello %+v", c.Hello())
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	start := time.UnixMilli(1000)
	hub.Draw(map[string]float64{"rms": 0.5}, start)

	select {
	case f := <-c.Frames:
		if f.Tick != 1 || f.StartMs != 1000 {
			t.Errorf("unexpected frame %+v", f)
		}
		var data map[string]float64
		if err := json.Unmarshal(f.Data, &data); err != nil || data["rms"] != 0.5 {
			t.Errorf("unexpected frame data %s", f.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	c.Close()
	<-c.Done()
}

func TestClientSetVolume(t *testing.T) {
	defer goleak.VerifyNone(t)

	got := make(chan render.ControlCommand, 1)
	_, addr, stop := startHub(render.Config{
		Control: func(cmd render.ControlCommand) { got <- cmd },
	})
	defer stop()

	c := NewClient(Config{Addr: addr})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer func() {
		c.Close()
		<-c.Done()
	}()

	if err := c.SetVolume(0.3); err != nil {
		t.Fatalf("set volume failed: %v", err)
	}

	select {
	case cmd := <-got:
		if cmd.Command != "volume" || cmd.Volume != 0.3 {
			t.Errorf("unexpected command %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control command")
	}
}

func TestHandshakeSourceKind(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"microphone", false},
		{"remote-stream", false},
		{"cassette", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			_, addr, stop := startHub(render.Config{
				Source: &render.SourceInfo{Kind: tt.kind, SampleRate: 48000, Channels: 1},
			})
			defer stop()

			c := NewClient(Config{Addr: addr})
			err := c.Connect(context.Background())
			if tt.wantErr {
				if err == nil {
					c.Close()
					<-c.Done()
					t.Fatal("expected handshake to reject the source kind")
				}
				return
			}
			if err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			if c.Hello().Source == nil || c.Hello().Source.Kind != tt.kind {
				t.Errorf("unexpected hello source %+v", c.Hello().Source)
			}
			c.Close()
			<-c.Done()
		})
	}
}

func TestConnectRefused(t *testing.T) {
	c := NewClient(Config{Addr: "127.0.0.1:1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err == nil {
		t.Error("expected dial error")
	}
}
