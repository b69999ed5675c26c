// ABOUTME: WebSocket client for the scope frame feed
// ABOUTME: Handles connection, hello handshake, frame routing, and volume control
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/resonate-scope/pkg/render"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// Config holds client configuration
type Config struct {
	Addr string // host:port
	Path string // defaults to /feed
}

// Frame is one analysed frame with its data left encoded
type Frame struct {
	Tick    uint64          `json:"tick"`
	StartMs int64           `json:"start_ms"`
	SentMs  int64           `json:"sent_ms"`
	Data    json.RawMessage `json:"data"`
}

// Client represents a feed connection
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.Mutex // serializes writes

	hello render.Hello

	// Frames receives frames; when full, new frames are dropped
	Frames chan Frame

	dropped atomic.Uint64
	done    chan struct{}
	once    sync.Once
}

// NewClient creates a new feed client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/feed"
	}
	return &Client{
		config: config,
		Frames: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
}

// Connect dials the feed and waits for the hello
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.Addr, Path: c.config.Path}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		conn.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake reads the hello the hub sends on connect
func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", render.TypeHello, err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", render.TypeHello, err)
	}
	if msg.Type != render.TypeHello {
		return fmt.Errorf("expected %s, got %s", render.TypeHello, msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &c.hello); err != nil {
		return fmt.Errorf("failed to parse %s: %w", render.TypeHello, err)
	}
	if c.hello.Version != render.ProtocolVersion {
		return fmt.Errorf("unsupported feed version %d", c.hello.Version)
	}
	if src := c.hello.Source; src != nil {
		if _, err := source.ParseKind(src.Kind); err != nil {
			return fmt.Errorf("invalid %s: %w", render.TypeHello, err)
		}
	}

	return nil
}

// Hello returns the handshake sent by the hub
func (c *Client) Hello() render.Hello {
	return c.hello
}

// Dropped returns how many frames were discarded because Frames was full
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SetVolume asks the scope to change its output volume
func (c *Client) SetVolume(v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(render.Message{
		Type:    render.TypeControl,
		Payload: render.ControlCommand{Command: "volume", Volume: v},
	})
}

// Close ends the connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.once.Do(func() { close(c.done) })
	defer close(c.Frames)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				log.Printf("Read error: %v", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage routes one JSON message
func (c *Client) handleMessage(data []byte) {
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case render.TypeFrame:
		var f Frame
		if err := json.Unmarshal(msg.Payload, &f); err != nil {
			log.Printf("Failed to parse frame: %v", err)
			return
		}
		select {
		case c.Frames <- f:
		default:
			c.dropped.Add(1)
		}
	case render.TypeError:
		log.Printf("Scope error: %s", msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}
