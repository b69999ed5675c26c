// ABOUTME: Sequential reader over a decoded clip
// ABOUTME: Feeds buffered sources to an output starting from a frame offset
package audio

import "io"

// PCMReader reads interleaved samples from a PCM clip
type PCMReader struct {
	pcm *PCM
	pos int // sample index
}

// NewPCMReader creates a reader positioned at startFrame
func NewPCMReader(pcm *PCM, startFrame int) *PCMReader {
	if startFrame < 0 {
		startFrame = 0
	}
	pos := startFrame * pcm.Channels
	if pos > len(pcm.Samples) {
		pos = len(pcm.Samples)
	}
	return &PCMReader{pcm: pcm, pos: pos}
}

// Read copies the next samples into dst; returns io.EOF once the clip is exhausted
func (r *PCMReader) Read(dst []float32) (int, error) {
	if r.pos >= len(r.pcm.Samples) {
		return 0, io.EOF
	}
	n := copy(dst, r.pcm.Samples[r.pos:])
	r.pos += n
	return n, nil
}

// SampleRate returns the clip sample rate
func (r *PCMReader) SampleRate() int { return r.pcm.SampleRate }

// Channels returns the clip channel count
func (r *PCMReader) Channels() int { return r.pcm.Channels }
