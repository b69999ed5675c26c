// ABOUTME: Tests for the visualizer session
// ABOUTME: Runs every source kind end to end with a manual scheduler
package visualizer

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/frame"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

type fakeOutput struct {
	mu      sync.Mutex
	volume  float64
	opened  bool
	written int
}

func (o *fakeOutput) Open(rate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = true
	return nil
}

func (o *fakeOutput) Write(samples []float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.written += len(samples)
	return nil
}

func (o *fakeOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
}

func (o *fakeOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

type echoFeed struct {
	mu     sync.Mutex
	volume float64
	closed bool
}

func (f *echoFeed) SampleRate() int { return 8000 }
func (f *echoFeed) Channels() int   { return 1 }

func (f *echoFeed) Latest(dst []float32) int {
	for i := range dst {
		dst[i] = 1
	}
	return len(dst)
}

func (f *echoFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *echoFeed) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

type fakeCapturer struct {
	available bool
	feed      *echoFeed
}

func (c *fakeCapturer) Available() bool { return c.available }
func (c *fakeCapturer) Capture(ctx context.Context) (source.LiveFeed, error) {
	return c.feed, nil
}

type fakeElement struct {
	echoFeed
	played bool
}

func (e *fakeElement) Play(sink source.Sink) error {
	e.played = true
	return nil
}

type fakeResolver struct{ element *fakeElement }

func (r fakeResolver) Resolve(ctx context.Context, url, clientID string) (source.Element, error) {
	return r.element, nil
}

type capture struct {
	windows []int
	drawn   int
}

func (c *capture) analyse(window []float32, delta time.Duration, now time.Time) any {
	c.windows = append(c.windows, len(window))
	return window[len(window)-1]
}

func (c *capture) Draw(data any, start time.Time) {
	c.drawn++
}

func clip() *audio.PCM {
	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = 0.5
	}
	return &audio.PCM{Samples: samples, SampleRate: 8000, Channels: 1}
}

func newTestSession(t *testing.T, deps Dependencies, c *capture) (*Session, *frame.ManualScheduler) {
	t.Helper()
	sched := frame.NewManualScheduler()
	deps.Scheduler = sched
	deps.Analyse = c.analyse
	deps.Renderer = c

	config := DefaultConfig()
	config.BufferSize = 256
	config.LogInfo = false

	s, err := NewSession(config, deps)
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, sched
}

func TestLibrarySession(t *testing.T) {
	c := &capture{}
	out := &fakeOutput{}
	t0 := time.Unix(100, 0)
	now := t0

	s, sched := newTestSession(t, Dependencies{
		Fetcher: source.FetcherFunc(func(ctx context.Context, p string) ([]byte, error) { return []byte{1}, nil }),
		Decoder: source.DecoderFunc(func([]byte) (*audio.PCM, error) { return clip(), nil }),
		Output:  out,
		Now:     func() time.Time { return now },
	}, c)

	if err := s.Open(context.Background(), source.NewLibraryRequest("band/song.mp3")); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if !out.opened {
		t.Error("expected playback to open the output")
	}
	if out.Volume() != 0.5 {
		t.Errorf("expected initial volume forwarded to output, got %v", out.Volume())
	}

	for i := 1; i <= 3; i++ {
		now = t0.Add(time.Duration(i) * 100 * time.Millisecond)
		sched.Step(now)
	}

	if len(c.windows) != 3 || c.drawn != 3 {
		t.Fatalf("expected 3 frames, got %d analysed %d drawn", len(c.windows), c.drawn)
	}
	if c.windows[0] != 256 {
		t.Errorf("expected 256-sample windows, got %d", c.windows[0])
	}
	if s.Stats().Ticks != 3 {
		t.Errorf("expected 3 ticks, got %d", s.Stats().Ticks)
	}
	if !s.StartTime().Equal(t0) {
		t.Errorf("expected start time %v, got %v", t0, s.StartTime())
	}

	s.SetVolume(2)
	if s.Volume() != 1 || out.Volume() != 1 {
		t.Errorf("expected volume clamped to 1, got %v / %v", s.Volume(), out.Volume())
	}
}

func TestMicrophoneSessionSkipsPlayback(t *testing.T) {
	c := &capture{}
	out := &fakeOutput{}
	feed := &echoFeed{}

	s, sched := newTestSession(t, Dependencies{
		Capturer: &fakeCapturer{available: true, feed: feed},
		Output:   out,
	}, c)

	if err := s.Open(context.Background(), source.NewMicrophoneRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if out.opened {
		t.Error("microphone sessions must not start playback")
	}

	sched.Step(time.Now())
	if len(c.windows) != 1 {
		t.Fatalf("expected one frame, got %d", len(c.windows))
	}

	s.SetVolume(0.25)
	if feed.volume != 0.25 {
		t.Errorf("expected feed gain 0.25, got %v", feed.volume)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !feed.closed {
		t.Error("expected capture to be closed")
	}
}

func TestRemoteSessionPlays(t *testing.T) {
	c := &capture{}
	element := &fakeElement{}

	s, sched := newTestSession(t, Dependencies{Resolver: fakeResolver{element: element}}, c)

	if err := s.Open(context.Background(), source.NewStreamRequest("https://soundcloud.com/x/y")); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !element.played {
		t.Error("expected remote element to play")
	}

	sched.Step(time.Now())
	if got := c.windows; len(got) != 1 {
		t.Fatalf("expected one frame, got %d", len(got))
	}
}

func TestOpenFailureReported(t *testing.T) {
	c := &capture{}
	s, sched := newTestSession(t, Dependencies{Capturer: &fakeCapturer{available: false}}, c)

	err := s.Open(context.Background(), source.NewMicrophoneRequest())
	if !errors.Is(err, source.ErrCapabilityUnavailable) {
		t.Fatalf("expected capability unavailable, got %v", err)
	}
	if sched.Pending() {
		t.Error("expected no frame loop after failed acquisition")
	}
	h := s.Handle()
	if h == nil {
		t.Fatal("expected the failed handle to be kept")
	}
	if h.Status() != source.Failed || h.ErrorDetail() == "" {
		t.Errorf("expected failed handle with detail, got %s %q", h.Status(), h.ErrorDetail())
	}
	if err := s.Close(); err != nil {
		t.Errorf("close after failed open returned %v", err)
	}
}

func TestSecondOpenRejected(t *testing.T) {
	c := &capture{}
	s, _ := newTestSession(t, Dependencies{Capturer: &fakeCapturer{available: true, feed: &echoFeed{}}}, c)

	if err := s.Open(context.Background(), source.NewMicrophoneRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Open(context.Background(), source.NewMicrophoneRequest()); !errors.Is(err, source.ErrUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestVolumeBeforeOpen(t *testing.T) {
	s, _ := newTestSession(t, Dependencies{}, &capture{})
	s.SetVolume(math.NaN())
	if s.Volume() != 0 {
		t.Errorf("expected NaN to clamp to 0, got %v", s.Volume())
	}
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	if _, err := NewSession(DefaultConfig(), Dependencies{}); err == nil {
		t.Error("expected error without analyser and renderer")
	}
}

func TestInvalidBufferSize(t *testing.T) {
	c := &capture{}
	sched := frame.NewManualScheduler()
	config := DefaultConfig()
	config.BufferSize = 1000

	s, err := NewSession(config, Dependencies{
		Capturer:  &fakeCapturer{available: true, feed: &echoFeed{}},
		Scheduler: sched,
		Analyse:   c.analyse,
		Renderer:  c,
	})
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	defer s.Close()

	if err := s.Open(context.Background(), source.NewMicrophoneRequest()); err == nil {
		t.Error("expected error for non power-of-two buffer")
	}
}
