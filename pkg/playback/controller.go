// ABOUTME: Playback controller starting output for ready sources
// ABOUTME: Buffered clips start at a transport time and offset; remote streams play from their current position
package playback

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// Output is the audible device playback writes to
type Output interface {
	output.Writer
	Open(sampleRate, channels int) error
}

// Options configures a Controller
type Options struct {
	// Output is optional; without it sources play silently for analysis only
	Output Output

	// Now returns the transport time; defaults to time.Now
	Now func() time.Time

	LogInfo   bool
	LogErrors bool
}

// Controller starts and stops playback of a session source
type Controller struct {
	opts Options

	mu      sync.Mutex
	started *source.Handle
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController creates a controller
func NewController(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{opts: opts}
}

// Start begins playback of h. when delays the start and offset skips into
// buffered audio; remote streams ignore both. Starting a microphone is a
// usage error.
func (c *Controller) Start(h *source.Handle, when, offset time.Duration) error {
	if h == nil {
		return source.UsageErrorf("start", "no source handle")
	}
	if status := h.Status(); status != source.Ready {
		return source.UsageErrorf("start", "source is %s, not ready", status)
	}

	switch h.Kind() {
	case source.LibraryFile, source.UserFile:
		bn, err := h.BufferNode()
		if err != nil {
			return err
		}
		return c.startBuffer(h, bn, when, offset)
	case source.RemoteStream:
		en, err := h.ElementNode()
		if err != nil {
			return err
		}
		return c.startElement(h, en, when, offset)
	case source.Microphone:
		err := source.UsageErrorf("start", "microphone sources are live and cannot be started")
		c.logError("Playback: %v", err)
		return err
	default:
		return source.UsageErrorf("start", "unknown source kind %v", h.Kind())
	}
}

func (c *Controller) startBuffer(h *source.Handle, bn *source.BufferNode, when, offset time.Duration) error {
	if when < 0 {
		when = 0
	}
	if offset < 0 {
		offset = 0
	}

	if bn.Started() {
		return source.UsageErrorf("start", "buffered source already started")
	}

	// The node is only started once the output is open, so a failed open
	// leaves it startable
	if c.opts.Output != nil {
		if err := c.opts.Output.Open(bn.SampleRate(), bn.Channels()); err != nil {
			c.logError("Playback: failed to open output: %v", err)
			return err
		}
	}

	if err := bn.Start(c.opts.Now().Add(when), offset); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = h

	c.logInfo("Playback started (when=%v, offset=%v)", when, offset)

	if c.opts.Output == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	reader := bn.Reader(offset)
	out := c.opts.Output
	go func(done chan struct{}) {
		defer close(done)

		if when > 0 {
			timer := time.NewTimer(when)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}

		err := output.Pump(ctx, reader, out, reader.SampleRate(), reader.Channels(), nil)
		if err != nil && ctx.Err() == nil {
			c.logError("Playback error: %v", err)
		}
	}(c.done)

	return nil
}

func (c *Controller) startElement(h *source.Handle, en *source.ElementNode, when, offset time.Duration) error {
	if when != 0 || offset != 0 {
		c.logInfo("Playback: remote streams play from their current position (ignoring when=%v, offset=%v)", when, offset)
	}

	var sink source.Sink
	if c.opts.Output != nil {
		if err := c.opts.Output.Open(en.SampleRate(), en.Channels()); err != nil {
			c.logError("Playback: failed to open output: %v", err)
			return err
		}
		sink = c.opts.Output
	}

	if err := en.Play(sink); err != nil {
		c.logError("Playback: failed to play stream: %v", err)
		return err
	}

	c.mu.Lock()
	c.started = h
	c.mu.Unlock()

	c.logInfo("Playback started (remote stream)")
	return nil
}

// Stop ends buffered playback and waits for output pumping to finish.
// Remote elements are closed by whoever owns the handle.
func (c *Controller) Stop() {
	c.mu.Lock()
	h, cancel, done := c.started, c.cancel, c.done
	c.started, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if h != nil {
		if bn, err := h.BufferNode(); err == nil {
			bn.Stop()
		}
		c.logInfo("Playback stopped")
	}
}

func (c *Controller) logInfo(format string, args ...any) {
	if c.opts.LogInfo {
		log.Printf(format, args...)
	}
}

func (c *Controller) logError(format string, args ...any) {
	if c.opts.LogErrors {
		log.Printf(format, args...)
	}
}
