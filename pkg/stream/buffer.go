// ABOUTME: Stream buffer producing a fixed-size mono window per poll
// ABOUTME: Hides the source kind from analysis and carries the session output gain
package stream

import (
	"fmt"
	"math"
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

const (
	// MinSize is the smallest accepted window
	MinSize = 32
	// DefaultSize is the window used when none is configured
	DefaultSize = 2048
)

// Gainer receives output gain changes
type Gainer interface {
	SetVolume(v float64)
}

// Option configures a Buffer
type Option func(*Buffer)

// WithOutput forwards volume changes to an output device
func WithOutput(g Gainer) Option {
	return func(b *Buffer) {
		b.output = g
	}
}

// WithClock replaces the wall clock used to place buffered playheads
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

// Buffer polls a ready handle for analysis windows
type Buffer struct {
	handle *source.Handle
	size   int
	volume atomic.Uint64
	output Gainer
	now    func() time.Time

	scratch []float32 // interleaved window, reused between polls
}

// New wraps h. size must be a power of two of at least MinSize.
func New(h *source.Handle, size int, volume float64, opts ...Option) (*Buffer, error) {
	if h == nil {
		return nil, fmt.Errorf("stream buffer requires a source handle")
	}
	if size < MinSize || bits.OnesCount(uint(size)) != 1 {
		return nil, fmt.Errorf("buffer size %d must be a power of two >= %d", size, MinSize)
	}

	b := &Buffer{
		handle: h,
		size:   size,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.SetVolume(volume)

	return b, nil
}

// Size returns the window length
func (b *Buffer) Size() int {
	return b.size
}

// SetVolume clamps v to [0, 1], stores it, and forwards it to the output
func (b *Buffer) SetVolume(v float64) {
	v = audio.Clamp01(v)
	b.volume.Store(math.Float64bits(v))
	if b.output != nil {
		b.output.SetVolume(v)
	}
}

// Volume returns the current gain
func (b *Buffer) Volume() float64 {
	return math.Float64frombits(b.volume.Load())
}

// Poll returns exactly Size mono samples, channels averaged and gain applied.
// Polling a handle that is not Ready is a usage error.
// The returned slice is owned by the caller.
func (b *Buffer) Poll() ([]float32, error) {
	if status := b.handle.Status(); status != source.Ready {
		return nil, source.UsageErrorf("poll", "source is %s, not ready", status)
	}

	node := b.handle.Node()
	channels := node.Channels()
	if channels < 1 {
		channels = 1
	}

	need := b.size * channels
	if cap(b.scratch) < need {
		b.scratch = make([]float32, need)
	}
	interleaved := b.scratch[:need]

	switch b.handle.Kind() {
	case source.LibraryFile, source.UserFile:
		bn, err := b.handle.BufferNode()
		if err != nil {
			return nil, err
		}
		bn.Window(interleaved, b.now())
	case source.Microphone:
		ln, err := b.handle.LiveNode()
		if err != nil {
			return nil, err
		}
		ln.Latest(interleaved)
	case source.RemoteStream:
		en, err := b.handle.ElementNode()
		if err != nil {
			return nil, err
		}
		en.Latest(interleaved)
	default:
		return nil, source.UsageErrorf("poll", "unknown source kind %v", b.handle.Kind())
	}

	return downmix(interleaved, channels, float32(b.Volume())), nil
}

// downmix averages interleaved frames into mono and applies gain
func downmix(interleaved []float32, channels int, gain float32) []float32 {
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	scale := gain / float32(channels)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += interleaved[base+c]
		}
		out[f] = sum * scale
	}
	return out
}
