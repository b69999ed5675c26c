// ABOUTME: Recent-sample ring buffer for live and streamed sources
// ABOUTME: Overwrites the oldest samples and snapshots the newest on demand
package audio

import "sync"

// Window keeps the most recent samples written to it.
// Writers are the capture callback or a decode goroutine; readers are the frame loop.
type Window struct {
	mu     sync.Mutex
	buffer []float32
	pos    int // next write index
	filled int
}

// NewWindow creates a window holding up to capacity samples
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		buffer: make([]float32, capacity),
	}
}

// Write appends samples, overwriting the oldest when full
func (w *Window) Write(samples []float32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := len(w.buffer)

	// Only the tail can survive a write longer than the ring
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}

	for _, s := range samples {
		w.buffer[w.pos] = s
		w.pos = (w.pos + 1) % size
	}

	w.filled += len(samples)
	if w.filled > size {
		w.filled = size
	}
}

// Latest copies the newest len(dst) samples into dst, oldest first.
// When fewer samples are available the front of dst is zero-filled.
// Returns the number of real samples copied.
func (w *Window) Latest(dst []float32) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := len(w.buffer)
	n := len(dst)
	if n > w.filled {
		n = w.filled
	}

	pad := len(dst) - n
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}

	for i := pad; i < len(dst); i++ {
		age := len(dst) - i // 1 = newest
		dst[i] = w.buffer[(w.pos-age+size)%size]
	}

	return n
}
