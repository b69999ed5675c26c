// ABOUTME: Tests for remote stream playback
// ABOUTME: Uses an in-memory decoder, and an httptest server for MP3 over HTTP
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// Resolvers created by other tests leave their cache janitor running
var ignoreCacheJanitor = goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run")

type fakeDecoder struct {
	mu      sync.Mutex
	samples []float32
	closed  bool
}

func (d *fakeDecoder) Read(dst []float32) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(d.samples) == 0 {
		return 0, io.EOF
	}
	n := copy(dst, d.samples)
	d.samples = d.samples[n:]
	return n, nil
}

func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type sinkRecorder struct {
	mu    sync.Mutex
	count int
}

func (s *sinkRecorder) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += len(samples)
	return nil
}

func TestIsHLS(t *testing.T) {
	tests := map[string]bool{
		"https://cf-hls-media.sndcdn.com/playlist/abc.m3u8?Policy=x": true,
		"https://api.soundcloud.com/tracks/1/stream?client_id=x":     false,
		"https://example.com/live.m3u8":                              true,
	}
	for u, expected := range tests {
		if IsHLS(u) != expected {
			t.Errorf("IsHLS(%q) expected %v", u, expected)
		}
	}
}

func TestStreamPlayFillsWindowAndSink(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	samples := make([]float32, 400)
	for i := range samples {
		samples[i] = float32(i) / 400
	}
	s := newStream("mem://test", &fakeDecoder{samples: samples}, 8000, 1)
	sink := &sinkRecorder{}

	if err := s.Play(sink); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if err := s.Play(sink); err != nil {
		t.Errorf("second play should be a no-op, got %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}

	if sink.count != len(samples) {
		t.Errorf("expected %d samples at sink, got %d", len(samples), sink.count)
	}

	dst := make([]float32, 2)
	s.Latest(dst)
	if dst[1] != samples[399] {
		t.Errorf("expected newest sample %f, got %f", samples[399], dst[1])
	}

	if err := s.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestStreamCloseStopsPacedPlayback(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	// Ten seconds of audio, paced in real time without a sink
	s := newStream("mem://test", &fakeDecoder{samples: make([]float32, 80000)}, 8000, 1)
	if err := s.Play(nil); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	if err := s.Play(nil); err == nil {
		t.Error("expected play after close to fail")
	}
}

func TestResolvedStreamOutlivesClientTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	clip, err := os.ReadFile("testdata/speech.mp3")
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}

	// The stream endpoint loops the clip until the client goes away
	stop := make(chan struct{})
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(stop)

	mux.HandleFunc("/resolve", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"kind":"track","streamable":true,"stream_url":%q}`, srv.URL+"/stream")
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		for {
			if _, err := w.Write(clip); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			select {
			case <-r.Context().Done():
				return
			case <-stop:
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	})

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: 200 * time.Millisecond}

	s := NewSoundCloud(Config{APIBase: srv.URL, Client: client})
	el, err := s.Resolve(context.Background(), testPage, "cid")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	defer el.Close()

	stream := el.(*Stream)
	if stream.SampleRate() != 22050 {
		t.Errorf("expected 22050Hz stream, got %d", stream.SampleRate())
	}
	if err := stream.Play(nil); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	select {
	case <-stream.Done():
		t.Fatal("stream ended while the server was still sending")
	case <-time.After(3 * client.Timeout):
	}

	if client.Timeout != 200*time.Millisecond {
		t.Error("resolver must not modify the caller's client")
	}
}
