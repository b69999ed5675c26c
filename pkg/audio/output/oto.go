// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 PCM through a persistent oto player fed by a pipe
package output

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	gain       *gain
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{
		gain: newGain(1),
	}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// If already initialized with same format, reuse the existing context
	if o.otoCtx != nil && o.sampleRate == sampleRate && o.channels == channels {
		log.Printf("Audio output already initialized with same format, reusing context")
		return nil
	}

	// oto only allows one context per process
	if o.otoCtx != nil {
		return fmt.Errorf("oto cannot reinitialize for %dHz %dch (already open at %dHz %dch)",
			sampleRate, channels, o.sampleRate, o.channels)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)

	return nil
}

// Write outputs audio samples (blocks until the player consumes them)
func (o *Oto) Write(samples []float32) error {
	o.mu.Lock()
	ready, pw := o.ready, o.pipeWriter
	o.mu.Unlock()

	if !ready {
		return fmt.Errorf("output not initialized")
	}

	out := make([]byte, len(samples)*4)
	audio.EncodeFloat32LE(out, samples, o.gain.get())

	if _, err := pw.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	o.ready = false
	return nil
}

// SetVolume sets the output gain in [0, 1]
func (o *Oto) SetVolume(volume float64) {
	v := o.gain.set(volume)
	log.Printf("Volume set to %.2f", v)
}

// Volume returns the current output gain
func (o *Oto) Volume() float64 {
	return o.gain.get()
}
