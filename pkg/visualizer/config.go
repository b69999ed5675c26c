// ABOUTME: Session configuration for the visualizer
// ABOUTME: One explicit value carries every setting the pipeline reads
package visualizer

import (
	"github.com/Resonate-Protocol/resonate-scope/pkg/frame"
	"github.com/Resonate-Protocol/resonate-scope/pkg/stream"
)

// Config holds session configuration
type Config struct {
	// BufferSize is the analysis window length, a power of two (default: 2048)
	BufferSize int

	// Volume is the initial output gain in [0, 1] (default: 0.5)
	Volume float64

	// Feedback echoes microphone input to the speakers
	Feedback bool

	// ClientID is the credential for remote stream resolution
	ClientID string

	// RefreshRate is the frame rate in Hz (default: 60)
	RefreshRate int

	// LogInfo logs progress; LogErrors logs failures
	LogInfo   bool
	LogErrors bool

	// HUDToggleKey shows and hides the HUD; empty disables toggling (default: "h")
	HUDToggleKey string

	// HUDDisplayed is the initial HUD visibility
	HUDDisplayed bool

	// LibraryRoot is the directory or base URL holding the sound library
	LibraryRoot string
}

// DefaultConfig returns the settings a session starts from
func DefaultConfig() Config {
	return Config{
		BufferSize:   stream.DefaultSize,
		Volume:       0.5,
		RefreshRate:  frame.DefaultRefreshRate,
		LogInfo:      true,
		LogErrors:    true,
		HUDToggleKey: "h",
		HUDDisplayed: true,
		LibraryRoot:  "audio",
	}
}

// withDefaults fills unset numeric fields
func (c Config) withDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = stream.DefaultSize
	}
	if c.RefreshRate <= 0 {
		c.RefreshRate = frame.DefaultRefreshRate
	}
	return c
}
