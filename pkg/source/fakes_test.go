// ABOUTME: Test doubles for source capabilities
// ABOUTME: In-memory fetcher, decoder, capturer, and resolver
package source

import (
	"context"
	"errors"
	"sync"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

func testPCM(frames, channels int) *audio.PCM {
	samples := make([]float32, frames*channels)
	for i := range samples {
		samples[i] = float32(i)
	}
	return &audio.PCM{Samples: samples, SampleRate: 1000, Channels: channels}
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func okDecoder(pcm *audio.PCM) Decoder {
	return DecoderFunc(func([]byte) (*audio.PCM, error) { return pcm, nil })
}

var errCorrupt = errors.New("corrupt audio")

func failingDecoder() Decoder {
	return DecoderFunc(func([]byte) (*audio.PCM, error) { return nil, errCorrupt })
}

type fakeFeed struct {
	mu     sync.Mutex
	latest []float32
	closed bool
}

func (f *fakeFeed) SampleRate() int { return 48000 }
func (f *fakeFeed) Channels() int   { return 1 }

func (f *fakeFeed) Latest(dst []float32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(dst)
	n := copy(dst[max(0, len(dst)-len(f.latest)):], f.latest)
	return n
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeCapturer struct {
	available bool
	err       error
	feed      *fakeFeed
	calls     int
}

func (c *fakeCapturer) Available() bool { return c.available }

func (c *fakeCapturer) Capture(ctx context.Context) (LiveFeed, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if c.feed == nil {
		c.feed = &fakeFeed{}
	}
	return c.feed, nil
}

type fakeElement struct {
	fakeFeed
	played int
}

func (e *fakeElement) Play(sink Sink) error {
	e.played++
	return nil
}

type fakeResolver struct {
	err      error
	element  *fakeElement
	url      string
	clientID string
}

func (r *fakeResolver) Resolve(ctx context.Context, url, clientID string) (Element, error) {
	r.url = url
	r.clientID = clientID
	if r.err != nil {
		return nil, r.err
	}
	if r.element == nil {
		r.element = &fakeElement{}
	}
	return r.element, nil
}
