// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded clips and sample conversions shared by sources and outputs
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Format describes the layout of an interleaved sample stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM is a fully decoded clip held in memory
type PCM struct {
	Samples    []float32 // Interleaved, normalized to [-1, 1]
	SampleRate int
	Channels   int
	Format     Format // Source format the clip was decoded from
}

// Frames returns the number of sample frames in the clip
func (p *PCM) Frames() int {
	if p == nil || p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playing time of the clip
func (p *PCM) Duration() time.Duration {
	if p == nil || p.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// FrameAt converts a time offset into a frame index (not clamped)
func FrameAt(offset time.Duration, sampleRate int) int {
	return int(offset * time.Duration(sampleRate) / time.Second)
}

// SampleFromInt16 converts a 16-bit sample to float32 in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleFromInt scales an integer sample of the given bit depth to [-1, 1)
func SampleFromInt(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

// Clamp01 bounds v to [0, 1]; NaN maps to 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DecodeFloat32LE converts little-endian float32 bytes to samples
func DecodeFloat32LE(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}

// EncodeFloat32LE writes samples scaled by gain as little-endian float32,
// clipped to [-1, 1], and zero-fills the rest of out. Returns samples written.
func EncodeFloat32LE(out []byte, samples []float32, gain float64) int {
	i := 0
	for ; i < len(samples) && (i+1)*4 <= len(out); i++ {
		v := float64(samples[i]) * gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	clear(out[i*4:])
	return i
}
