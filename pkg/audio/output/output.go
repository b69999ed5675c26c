// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends
package output

// Writer accepts interleaved float32 samples
type Writer interface {
	// Write outputs audio samples (blocks until queued)
	Write(samples []float32) error
}

// Output represents an audio output device
type Output interface {
	Writer

	// Open initializes the output device
	Open(sampleRate, channels int) error

	// SetVolume sets the output gain in [0, 1]; out-of-range values are clamped
	SetVolume(volume float64)

	// Volume returns the current output gain
	Volume() float64

	// Close releases output resources
	Close() error
}
