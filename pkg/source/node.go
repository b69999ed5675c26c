// ABOUTME: Ready nodes produced by acquisition
// ABOUTME: Buffered clips follow a clock-driven playhead; live and remote nodes expose their newest samples
package source

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Node is the playable endpoint held by a ready handle.
// The set of variants is closed: *BufferNode, *LiveNode, *ElementNode.
type Node interface {
	SampleRate() int
	Channels() int
	node()
}

// BufferNode plays a fully decoded clip. It can be started once.
type BufferNode struct {
	pcm *audio.PCM

	mu      sync.Mutex
	started bool
	stopped bool
	startAt time.Time
	offset  time.Duration
}

// NewBufferNode wraps a decoded clip
func NewBufferNode(pcm *audio.PCM) *BufferNode {
	return &BufferNode{pcm: pcm}
}

func (*BufferNode) node() {}

// SampleRate returns the clip sample rate
func (n *BufferNode) SampleRate() int { return n.pcm.SampleRate }

// Channels returns the clip channel count
func (n *BufferNode) Channels() int { return n.pcm.Channels }

// PCM returns the decoded clip
func (n *BufferNode) PCM() *audio.PCM { return n.pcm }

// Start schedules playback to begin at the given time from offset into the clip
func (n *BufferNode) Start(at time.Time, offset time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return UsageErrorf("start", "buffered source already started")
	}
	if offset < 0 {
		offset = 0
	}

	n.started = true
	n.startAt = at
	n.offset = offset
	return nil
}

// Stop silences the node; it cannot be restarted
func (n *BufferNode) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
}

// Started reports whether Start has been called
func (n *BufferNode) Started() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// Playhead returns the clip position at now, and false when the node is not playing
func (n *BufferNode) Playhead(now time.Time) (time.Duration, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started || n.stopped || now.Before(n.startAt) {
		return 0, false
	}
	pos := n.offset + now.Sub(n.startAt)
	if pos > n.pcm.Duration() {
		return n.pcm.Duration(), false
	}
	return pos, true
}

// Window fills dst with the interleaved samples that end at the playhead.
// Frames before the clip start or after its end are silent, as is every
// frame while the node is not playing. Returns the number of real samples.
func (n *BufferNode) Window(dst []float32, now time.Time) int {
	pos, playing := n.Playhead(now)
	if !playing {
		clear(dst)
		return 0
	}

	ch := n.pcm.Channels
	end := audio.FrameAt(pos, n.pcm.SampleRate) * ch
	start := end - len(dst)

	copied := 0
	for i := range dst {
		idx := start + i
		if idx < 0 || idx >= len(n.pcm.Samples) {
			dst[i] = 0
			continue
		}
		dst[i] = n.pcm.Samples[idx]
		copied++
	}
	return copied
}

// Reader returns a sequential reader from offset, for audible output
func (n *BufferNode) Reader(offset time.Duration) *audio.PCMReader {
	return audio.NewPCMReader(n.pcm, audio.FrameAt(offset, n.pcm.SampleRate))
}

// LiveNode wraps an open capture feed
type LiveNode struct {
	feed LiveFeed
}

// NewLiveNode wraps a capture feed
func NewLiveNode(feed LiveFeed) *LiveNode {
	return &LiveNode{feed: feed}
}

func (*LiveNode) node() {}

// SampleRate returns the capture sample rate
func (n *LiveNode) SampleRate() int { return n.feed.SampleRate() }

// Channels returns the capture channel count
func (n *LiveNode) Channels() int { return n.feed.Channels() }

// Feed returns the underlying capture feed
func (n *LiveNode) Feed() LiveFeed { return n.feed }

// Latest fills dst with the newest captured samples
func (n *LiveNode) Latest(dst []float32) int { return n.feed.Latest(dst) }

// Close stops capture
func (n *LiveNode) Close() error { return n.feed.Close() }

// ElementNode wraps a resolved remote element
type ElementNode struct {
	element Element
}

// NewElementNode wraps a remote element
func NewElementNode(e Element) *ElementNode {
	return &ElementNode{element: e}
}

func (*ElementNode) node() {}

// SampleRate returns the stream sample rate
func (n *ElementNode) SampleRate() int { return n.element.SampleRate() }

// Channels returns the stream channel count
func (n *ElementNode) Channels() int { return n.element.Channels() }

// Play starts the element from its current position
func (n *ElementNode) Play(sink Sink) error { return n.element.Play(sink) }

// Latest fills dst with the newest decoded samples
func (n *ElementNode) Latest(dst []float32) int { return n.element.Latest(dst) }

// Close stops the element
func (n *ElementNode) Close() error { return n.element.Close() }
