// ABOUTME: Message types exchanged with frame preview clients
// ABOUTME: Every message is a JSON envelope with a type and a payload
package render

// ProtocolVersion is the preview protocol version
const ProtocolVersion = 1

// Message types
const (
	TypeHello   = "server/hello"
	TypeFrame   = "server/frame"
	TypeControl = "client/control"
	TypeError   = "server/error"
)

// Message is the top-level wrapper for all preview messages
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hello is sent to each client when it connects
type Hello struct {
	SessionID string      `json:"session_id"`
	ClientID  string      `json:"client_id"`
	Name      string      `json:"name"`
	Version   int         `json:"version"`
	Source    *SourceInfo `json:"source,omitempty"`
}

// SourceInfo describes the audio being analysed
type SourceInfo struct {
	Kind       string `json:"kind"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// Frame carries one tick's analysed data
type Frame struct {
	Tick    uint64 `json:"tick"`
	StartMs int64  `json:"start_ms"` // session start, unix milliseconds
	SentMs  int64  `json:"sent_ms"`
	Data    any    `json:"data"`
}

// ControlCommand is a control message from a client
type ControlCommand struct {
	Command string  `json:"command"` // "volume"
	Volume  float64 `json:"volume,omitempty"`
}
