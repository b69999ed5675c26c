// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a ring buffer feeding the device callback
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	gain       *gain
	ready      bool
	closed     chan struct{}

	// Ring buffer for callback-based playback; gain is applied as the device drains it
	ringBuffer *RingBuffer
	scratch    []float32 // callback-only
	mu         sync.Mutex
}

// RingBuffer provides thread-safe circular buffer for audio samples
type RingBuffer struct {
	buffer   []float32
	readPos  int
	writePos int
	size     int
	count    int // Number of samples currently in buffer
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]float32, capacity),
		size:   capacity,
	}
}

// Write adds samples to the ring buffer, returning how many fit
func (rb *RingBuffer) Write(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read retrieves samples from the ring buffer
func (rb *RingBuffer) Read(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}

	// Zero-fill remaining if underrun
	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}

	return read
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// NewMalgo creates a new Malgo output
func NewMalgo() Output {
	return &Malgo{
		gain:   newGain(1),
		closed: make(chan struct{}),
	}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		log.Printf("Audio output already initialized with same format, reusing device")
		return nil
	}

	// If format changed, reinitialize
	if m.device != nil {
		log.Printf("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	// Create ring buffer (500ms capacity)
	bufferSamples := (sampleRate * channels * 500) / 1000
	m.ringBuffer = NewRingBuffer(bufferSamples)

	// Configure device
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// Set up callbacks
	m.channels = channels
	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pOutputSample, frameCount)
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: onSamples,
	}

	// Initialize device
	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	// Start device
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (malgo/F32)", sampleRate, channels)

	return nil
}

// Write queues audio samples for playback, waiting while the ring is full
func (m *Malgo) Write(samples []float32) error {
	m.mu.Lock()
	ready, ring, rate := m.ready, m.ringBuffer, m.sampleRate
	m.mu.Unlock()

	if !ready {
		return fmt.Errorf("output not initialized")
	}

	// Poll at roughly a tenth of the ring duration while it drains
	wait := time.Duration(ring.size/10) * time.Second / time.Duration(rate*m.channels)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}

	written := 0
	for written < len(samples) {
		n := ring.Write(samples[written:])
		written += n
		if n == 0 {
			select {
			case <-m.closed:
				return fmt.Errorf("output closed")
			case <-time.After(wait):
			}
		}
	}

	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.channels
	if cap(m.scratch) < total {
		m.scratch = make([]float32, total)
	}
	samples := m.scratch[:total]

	m.ringBuffer.Read(samples)
	audio.EncodeFloat32LE(pOutput, samples, m.gain.get())
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.closed:
		return nil
	default:
		close(m.closed)
	}

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
}

// SetVolume sets the output gain in [0, 1]
func (m *Malgo) SetVolume(volume float64) {
	v := m.gain.set(volume)
	log.Printf("Volume set to %.2f", v)
}

// Volume returns the current output gain
func (m *Malgo) Volume() float64 {
	return m.gain.get()
}
