// ABOUTME: Websocket hub broadcasting analysed frames to preview clients
// ABOUTME: Implements the frame renderer contract and accepts volume commands from clients
package render

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer    = 16
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Config configures a Hub
type Config struct {
	Name      string
	SessionID string
	Source    *SourceInfo

	// Control receives commands sent by clients
	Control func(ControlCommand)

	Debug bool
}

// Hub fans frames out to connected websocket clients
type Hub struct {
	config   Config
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
	tick    uint64

	wg sync.WaitGroup
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewHub creates a hub
func NewHub(config Config) *Hub {
	if config.SessionID == "" {
		config.SessionID = uuid.New().String()
	}
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Preview clients run on the local network
				return true
			},
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves one preview client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c.id] = c
	h.wg.Add(2)
	info := h.config.Source
	h.mu.Unlock()

	if h.config.Debug {
		log.Printf("Preview client connected: %s (%s)", c.id, r.RemoteAddr)
	}

	h.enqueue(c, Message{Type: TypeHello, Payload: Hello{
		SessionID: h.config.SessionID,
		ClientID:  c.id,
		Name:      h.config.Name,
		Version:   ProtocolVersion,
		Source:    info,
	}})

	go h.writer(c)
	h.reader(c)
}

// SetSource sets the source announced to clients that connect afterwards
func (h *Hub) SetSource(info *SourceInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config.Source = info
}

// Draw broadcasts analysed data; slow clients drop frames
func (h *Hub) Draw(data any, start time.Time) {
	h.mu.Lock()
	h.tick++
	frame := Frame{
		Tick:    h.tick,
		StartMs: start.UnixMilli(),
		SentMs:  time.Now().UnixMilli(),
		Data:    data,
	}
	h.mu.Unlock()

	payload, err := json.Marshal(Message{Type: TypeFrame, Payload: frame})
	if err != nil {
		log.Printf("Error marshaling frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Client is behind; the next frame supersedes this one
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their goroutines
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
	h.wg.Wait()
	return nil
}

func (h *Hub) enqueue(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Preview client %s send buffer full", c.id)
	}
}

func (h *Hub) reader(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		c.close()
		h.mu.Unlock()
		c.conn.Close()
		h.wg.Done()
		if h.config.Debug {
			log.Printf("Preview client disconnected: %s", c.id)
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		h.handleMessage(c, data)
	}
}

func (h *Hub) handleMessage(c *client, data []byte) {
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case TypeControl:
		var cmd ControlCommand
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			h.enqueue(c, Message{Type: TypeError, Payload: map[string]string{"error": "invalid_control"}})
			return
		}
		if h.config.Control != nil {
			h.config.Control(cmd)
		}
	default:
		if h.config.Debug {
			log.Printf("Ignoring message type %s from %s", msg.Type, c.id)
		}
	}
}

func (h *Hub) writer(c *client) {
	defer h.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
