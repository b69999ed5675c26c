// ABOUTME: Tests for ready nodes
// ABOUTME: Verifies the buffered playhead window and node variant accessors
package source

import (
	"errors"
	"testing"
	"time"
)

func TestBufferNodeWindowFollowsPlayhead(t *testing.T) {
	t0 := time.Unix(1000, 0)

	tests := []struct {
		name     string
		offset   time.Duration
		at       time.Duration
		expected []float32
		copied   int
	}{
		{"before start", 0, -time.Millisecond, []float32{0, 0, 0, 0}, 0},
		{"mid clip", 0, 50 * time.Millisecond, []float32{46, 47, 48, 49}, 4},
		{"with offset", 20 * time.Millisecond, 10 * time.Millisecond, []float32{26, 27, 28, 29}, 4},
		{"clip start padded", 0, 2 * time.Millisecond, []float32{0, 0, 0, 1}, 2},
		{"clip end", 0, 100 * time.Millisecond, []float32{96, 97, 98, 99}, 4},
		{"after end", 0, 200 * time.Millisecond, []float32{0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewBufferNode(testPCM(100, 1))
			if err := n.Start(t0, tt.offset); err != nil {
				t.Fatalf("start failed: %v", err)
			}

			dst := make([]float32, 4)
			copied := n.Window(dst, t0.Add(tt.at))

			if copied != tt.copied {
				t.Errorf("expected %d real samples, got %d", tt.copied, copied)
			}
			for i := range tt.expected {
				if dst[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, dst)
					break
				}
			}
		})
	}
}

func TestBufferNodeStereoWindow(t *testing.T) {
	t0 := time.Unix(1000, 0)
	n := NewBufferNode(testPCM(10, 2))
	_ = n.Start(t0, 0)

	dst := make([]float32, 4)
	n.Window(dst, t0.Add(5*time.Millisecond))

	expected := []float32{6, 7, 8, 9}
	for i := range expected {
		if dst[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, dst)
		}
	}
}

func TestBufferNodeSilentUntilStarted(t *testing.T) {
	n := NewBufferNode(testPCM(100, 1))
	dst := []float32{9, 9}

	if copied := n.Window(dst, time.Now()); copied != 0 || dst[0] != 0 || dst[1] != 0 {
		t.Errorf("expected silence, got %v", dst)
	}
}

func TestBufferNodeStartsOnce(t *testing.T) {
	n := NewBufferNode(testPCM(100, 1))
	if err := n.Start(time.Now(), 0); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if err := n.Start(time.Now(), 0); !errors.Is(err, ErrUsage) {
		t.Errorf("expected usage error on second start, got %v", err)
	}
}

func TestBufferNodeStop(t *testing.T) {
	t0 := time.Unix(1000, 0)
	n := NewBufferNode(testPCM(100, 1))
	_ = n.Start(t0, 0)
	n.Stop()

	if _, playing := n.Playhead(t0.Add(10 * time.Millisecond)); playing {
		t.Error("expected stopped node not to play")
	}
}

func TestBufferNodeReaderOffset(t *testing.T) {
	n := NewBufferNode(testPCM(100, 1))
	r := n.Reader(10 * time.Millisecond)

	dst := make([]float32, 2)
	if _, err := r.Read(dst); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if dst[0] != 10 || dst[1] != 11 {
		t.Errorf("expected reader at frame 10, got %v", dst)
	}
}

func TestNodeAccessorsMatchKind(t *testing.T) {
	h := newHandle(Microphone, false)
	h.begin()
	h.succeed(NewLiveNode(&fakeFeed{latest: []float32{1, 2}}))

	if _, err := h.BufferNode(); !errors.Is(err, ErrUsage) {
		t.Errorf("expected usage error for buffer node on microphone, got %v", err)
	}

	ln, err := h.LiveNode()
	if err != nil {
		t.Fatalf("expected live node: %v", err)
	}
	dst := make([]float32, 3)
	if n := ln.Latest(dst); n != 2 || dst[0] != 0 || dst[2] != 2 {
		t.Errorf("unexpected live window %v (%d)", dst, n)
	}

	if err := h.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestHandleClosePerKind(t *testing.T) {
	feed := &fakeFeed{}
	element := &fakeElement{}
	buffer := NewBufferNode(testPCM(10000, 1))
	if err := buffer.Start(time.Now().Add(-100*time.Millisecond), 0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, playing := buffer.Playhead(time.Now()); !playing {
		t.Fatal("expected buffer to be playing before close")
	}

	tests := []struct {
		kind   Kind
		node   Node
		closed func() bool
	}{
		{LibraryFile, buffer, func() bool {
			_, playing := buffer.Playhead(time.Now())
			return !playing
		}},
		{Microphone, NewLiveNode(feed), func() bool { return feed.closed }},
		{RemoteStream, NewElementNode(element), func() bool { return element.closed }},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			h := newHandle(tt.kind, false)
			h.begin()
			h.succeed(tt.node)

			if err := h.Close(); err != nil {
				t.Fatalf("close failed: %v", err)
			}
			if !tt.closed() {
				t.Errorf("expected %s node to be released", tt.kind)
			}
		})
	}
}

func TestCloseFailedHandleIsNoop(t *testing.T) {
	h := newHandle(RemoteStream, false)
	h.begin()
	h.fail(newError(TransportError, "resolve", errors.New("offline")))

	if err := h.Close(); err != nil {
		t.Errorf("expected no error closing a failed handle, got %v", err)
	}
}
