// ABOUTME: Microphone capture through malgo/miniaudio
// ABOUTME: Keeps a window of recent samples and optionally echoes input to the output
package capture

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// Config describes the capture format
type Config struct {
	SampleRate   int
	Channels     int
	WindowFrames int  // recent frames kept for polling
	Feedback     bool // echo input to the default playback device
}

// DefaultConfig returns mono 48kHz capture with a one second window
func DefaultConfig() Config {
	return Config{
		SampleRate:   48000,
		Channels:     1,
		WindowFrames: 48000,
	}
}

// Malgo opens capture devices
type Malgo struct {
	config Config
}

// NewMalgo creates a capturer, filling zero fields from DefaultConfig
func NewMalgo(config Config) *Malgo {
	def := DefaultConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.Channels <= 0 {
		config.Channels = def.Channels
	}
	if config.WindowFrames <= 0 {
		config.WindowFrames = config.SampleRate
	}
	return &Malgo{config: config}
}

// Available reports whether any capture device exists
func (m *Malgo) Available() bool {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return false
	}
	return len(devices) > 0
}

// Capture starts the default capture device
func (m *Malgo) Capture(ctx context.Context) (source.LiveFeed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &source.Error{
			Kind:   source.CapabilityUnavailable,
			Op:     "capture",
			Detail: err.Error(),
			Err:    fmt.Errorf("failed to initialize malgo context: %w", err),
		}
	}

	feed := &Feed{
		malgoCtx:   mctx,
		sampleRate: m.config.SampleRate,
		channels:   m.config.Channels,
		window:     audio.NewWindow(m.config.WindowFrames * m.config.Channels),
		feedback:   m.config.Feedback,
	}
	feed.SetVolume(1)

	deviceType := malgo.Capture
	if m.config.Feedback {
		deviceType = malgo.Duplex
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(m.config.Channels)
	if m.config.Feedback {
		deviceConfig.Playback.Format = malgo.FormatF32
		deviceConfig.Playback.Channels = uint32(m.config.Channels)
	}
	deviceConfig.SampleRate = uint32(m.config.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: feed.dataCallback,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		feed.freeContext()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		feed.freeContext()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	feed.device = device
	log.Printf("Capture initialized: %dHz, %d channels (feedback=%v)",
		m.config.SampleRate, m.config.Channels, m.config.Feedback)

	return feed, nil
}

// Feed is a running capture device
type Feed struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	window     *audio.Window
	feedback   bool
	gain       atomic.Uint64

	closeOnce sync.Once
}

// SampleRate returns the capture sample rate
func (f *Feed) SampleRate() int { return f.sampleRate }

// Channels returns the capture channel count
func (f *Feed) Channels() int { return f.channels }

// Latest fills dst with the newest captured samples
func (f *Feed) Latest(dst []float32) int { return f.window.Latest(dst) }

// SetVolume sets the echo gain in [0, 1]
func (f *Feed) SetVolume(v float64) {
	f.gain.Store(math.Float64bits(audio.Clamp01(v)))
}

// Volume returns the echo gain
func (f *Feed) Volume() float64 {
	return math.Float64frombits(f.gain.Load())
}

func (f *Feed) dataCallback(pOutput, pInput []byte, frameCount uint32) {
	n := int(frameCount) * f.channels
	if len(pInput) < n*4 {
		n = len(pInput) / 4
	}

	samples := audio.DecodeFloat32LE(pInput[:n*4])
	f.window.Write(samples)

	if f.feedback && len(pOutput) > 0 {
		audio.EncodeFloat32LE(pOutput, samples, f.Volume())
	}
}

// Close stops the device and releases the context
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		if f.device != nil {
			if err := f.device.Stop(); err != nil {
				log.Printf("Warning: capture stop error: %v", err)
			}
			f.device.Uninit()
		}
		f.freeContext()
	})
	return nil
}

func (f *Feed) freeContext() {
	if f.malgoCtx == nil {
		return
	}
	if err := f.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	f.malgoCtx.Free()
	f.malgoCtx = nil
}
