// ABOUTME: External capabilities the coordinator depends on
// ABOUTME: Byte fetching, decoding, live capture, and remote stream resolution
package source

import (
	"context"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Fetcher loads the raw bytes of a library file
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, path string) ([]byte, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, path string) ([]byte, error) {
	return f(ctx, path)
}

// Decoder turns encoded bytes into a decoded clip
type Decoder interface {
	Decode(data []byte) (*audio.PCM, error)
}

// DecoderFunc adapts a function to Decoder
type DecoderFunc func(data []byte) (*audio.PCM, error)

// Decode calls f
func (f DecoderFunc) Decode(data []byte) (*audio.PCM, error) {
	return f(data)
}

// Sink receives interleaved samples for audible output
type Sink interface {
	Write(samples []float32) error
}

// LiveFeed is an open capture stream
type LiveFeed interface {
	SampleRate() int
	Channels() int
	// Latest fills dst with the newest interleaved samples, zero-padding the front
	Latest(dst []float32) int
	Close() error
}

// Capturer opens live capture. Available reports whether the host has any
// capture capability; Capture is the permission-gated open.
type Capturer interface {
	Available() bool
	Capture(ctx context.Context) (LiveFeed, error)
}

// Element is a playable remote stream
type Element interface {
	SampleRate() int
	Channels() int
	// Play starts decoding from the current position, writing to sink when non-nil
	Play(sink Sink) error
	Latest(dst []float32) int
	Close() error
}

// Resolver maps a public track URL to a playable element
type Resolver interface {
	Resolve(ctx context.Context, url, clientID string) (Element, error)
}
