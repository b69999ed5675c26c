// ABOUTME: Visualizer session wiring acquisition, stream buffer, playback, and the frame loop
// ABOUTME: Opens one source per session and drives analysis and rendering until closed
package visualizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/frame"
	"github.com/Resonate-Protocol/resonate-scope/pkg/playback"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
	"github.com/Resonate-Protocol/resonate-scope/pkg/stream"
)

// Output is an audible device with a volume control
type Output interface {
	playback.Output
	SetVolume(v float64)
}

// Dependencies are the collaborators a session uses
type Dependencies struct {
	Fetcher  source.Fetcher
	Decoder  source.Decoder
	Capturer source.Capturer
	Resolver source.Resolver

	// Output is optional; without it audio is analysed but not heard
	Output Output

	// Scheduler defaults to a ticker at Config.RefreshRate
	Scheduler frame.Scheduler

	Analyse  frame.AnalyseFunc
	Renderer frame.Renderer
	Metrics  *frame.Metrics

	// Now defaults to time.Now
	Now func() time.Time
}

// Session is one visualizer run over one source
type Session struct {
	id     string
	config Config
	deps   Dependencies

	coordinator *source.Coordinator
	playback    *playback.Controller
	loop        *frame.Orchestrator
	ticker      *frame.TickerScheduler // owned when no scheduler was supplied

	mu     sync.Mutex
	handle *source.Handle
	buffer *stream.Buffer
	err    error
	done   chan struct{}
	closed bool
}

// NewSession validates dependencies and prepares a session
func NewSession(config Config, deps Dependencies) (*Session, error) {
	config = config.withDefaults()

	if deps.Analyse == nil {
		return nil, errors.New("session requires an analyse function")
	}
	if deps.Renderer == nil {
		return nil, errors.New("session requires a renderer")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Session{
		id:     uuid.New().String(),
		config: config,
		deps:   deps,
		done:   make(chan struct{}),
	}

	s.coordinator = source.NewCoordinator(source.Options{
		Fetcher:   deps.Fetcher,
		Decoder:   deps.Decoder,
		Capturer:  deps.Capturer,
		Resolver:  deps.Resolver,
		ClientID:  config.ClientID,
		Feedback:  config.Feedback,
		LogInfo:   config.LogInfo,
		LogErrors: config.LogErrors,
	})

	var out playback.Output
	if deps.Output != nil {
		out = deps.Output
	}
	s.playback = playback.NewController(playback.Options{
		Output:    out,
		Now:       deps.Now,
		LogInfo:   config.LogInfo,
		LogErrors: config.LogErrors,
	})

	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.config
}

// Open acquires the requested source, starts playback where the source
// supports it, and starts the frame loop. A session opens one source.
func (s *Session) Open(ctx context.Context, req source.Request) error {
	h, err := s.coordinator.Acquire(ctx, req)
	if err != nil {
		// A failed acquisition still yields a handle carrying the detail
		if h != nil {
			s.mu.Lock()
			if s.handle == nil {
				s.handle = h
			}
			s.mu.Unlock()
		}
		return err
	}

	opts := []stream.Option{stream.WithClock(s.deps.Now)}
	if g := s.gainTarget(h); g != nil {
		opts = append(opts, stream.WithOutput(g))
	}

	buf, err := stream.New(h, s.config.BufferSize, s.config.Volume, opts...)
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("failed to create stream buffer: %w", err)
	}

	if h.Kind() != source.Microphone {
		if err := s.playback.Start(h, 0, 0); err != nil {
			_ = h.Close()
			return fmt.Errorf("failed to start playback: %w", err)
		}
	}

	sched := s.deps.Scheduler
	if sched == nil {
		s.ticker = frame.NewTickerScheduler(s.config.RefreshRate)
		sched = s.ticker
	}

	loop, err := frame.New(frame.Config{
		Scheduler: sched,
		Analyse:   s.deps.Analyse,
		Renderer:  s.deps.Renderer,
		Now:       s.deps.Now,
		OnError:   s.fail,
		Metrics:   s.deps.Metrics,
		LogErrors: s.config.LogErrors,
	})
	if err != nil {
		s.teardown(h)
		return err
	}

	s.mu.Lock()
	s.handle = h
	s.buffer = buf
	s.loop = loop
	s.mu.Unlock()

	if err := loop.Start(buf); err != nil {
		s.teardown(h)
		return err
	}

	if s.config.LogInfo {
		if s.ticker != nil {
			log.Printf("Session %s running: %s, window %d, refresh every %v", s.id, h.Kind(), s.config.BufferSize, s.ticker.Interval())
		} else {
			log.Printf("Session %s running: %s, window %d", s.id, h.Kind(), s.config.BufferSize)
		}
	}
	return nil
}

// gainTarget picks what SetVolume controls for the source kind
func (s *Session) gainTarget(h *source.Handle) stream.Gainer {
	switch h.Kind() {
	case source.LibraryFile, source.UserFile, source.RemoteStream:
		if s.deps.Output != nil {
			return s.deps.Output
		}
		return nil
	case source.Microphone:
		ln, err := h.LiveNode()
		if err != nil {
			return nil
		}
		// Feeds that echo to the speakers carry their own gain
		if g, ok := ln.Feed().(stream.Gainer); ok {
			return g
		}
		return nil
	default:
		return nil
	}
}

// SetVolume sets the output gain, clamped to [0, 1]
func (s *Session) SetVolume(v float64) {
	s.mu.Lock()
	buf := s.buffer
	s.mu.Unlock()

	if buf != nil {
		buf.SetVolume(v)
		return
	}
	if s.deps.Output != nil {
		s.deps.Output.SetVolume(v)
	}
	s.mu.Lock()
	s.config.Volume = audio.Clamp01(v)
	s.mu.Unlock()
}

// Volume returns the current gain
func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer != nil {
		return s.buffer.Volume()
	}
	return s.config.Volume
}

// Handle returns the acquired source. After a failed acquisition it is the
// Failed handle; it is nil before Open or when Open was rejected outright.
func (s *Session) Handle() *source.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Stats returns frame loop timing
func (s *Session) Stats() frame.Stats {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return frame.Stats{}
	}
	return loop.Stats()
}

// StartTime returns when the frame loop started
func (s *Session) StartTime() time.Time {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return time.Time{}
	}
	return loop.StartTime()
}

// Done is closed when the frame loop stops on an error
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that stopped the frame loop
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the loop, playback, and the source
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	h := s.handle
	s.mu.Unlock()

	s.teardown(h)
	return nil
}

func (s *Session) teardown(h *source.Handle) {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.playback.Stop()
	if h != nil {
		if err := h.Close(); err != nil && s.config.LogErrors {
			log.Printf("Error closing source: %v", err)
		}
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = err
	close(s.done)
}
