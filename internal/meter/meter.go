// ABOUTME: Level meter analyser for the command line preview
// ABOUTME: Reports RMS, peak, smoothed energy, and a debounced beat flag per frame
package meter

import (
	"math"
	"time"
)

// Config tunes beat detection
type Config struct {
	// Threshold is the minimum RMS for a beat
	Threshold float64
	// IgnoreTime is the minimum spacing between beats
	IgnoreTime time.Duration
	// Persistence weights past energy in the running average, in [0, 1)
	Persistence float64
}

// DefaultConfig returns the beat settings used by the CLI
func DefaultConfig() Config {
	return Config{
		Threshold:   0.15,
		IgnoreTime:  300 * time.Millisecond,
		Persistence: 0.95,
	}
}

// Level is the analysed data for one frame
type Level struct {
	RMS     float64 `json:"rms"`
	Peak    float64 `json:"peak"`
	Energy  float64 `json:"energy"`
	Beat    bool    `json:"beat"`
	Beats   uint64  `json:"beats"`
	DeltaMs float64 `json:"delta_ms"`
	TimeMs  int64   `json:"time_ms"`
}

// Meter keeps the running state between frames. Not safe for concurrent use;
// the frame loop calls it from one goroutine.
type Meter struct {
	config   Config
	energy   float64
	lastBeat time.Time
	beats    uint64
}

// New creates a meter, filling zero fields from DefaultConfig
func New(config Config) *Meter {
	def := DefaultConfig()
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	if config.IgnoreTime <= 0 {
		config.IgnoreTime = def.IgnoreTime
	}
	if config.Persistence <= 0 || config.Persistence >= 1 {
		config.Persistence = def.Persistence
	}
	return &Meter{config: config}
}

// Analyse measures one window; its signature matches frame.AnalyseFunc
func (m *Meter) Analyse(window []float32, delta time.Duration, now time.Time) any {
	var sum, peak float64
	for _, s := range window {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	rms := 0.0
	if len(window) > 0 {
		rms = math.Sqrt(sum / float64(len(window)))
	}

	beat := rms >= m.config.Threshold &&
		rms > m.energy &&
		(m.lastBeat.IsZero() || now.Sub(m.lastBeat) >= m.config.IgnoreTime)
	if beat {
		m.lastBeat = now
		m.beats++
	}

	m.energy = m.energy*m.config.Persistence + rms*(1-m.config.Persistence)

	return Level{
		RMS:     rms,
		Peak:    peak,
		Energy:  m.energy,
		Beat:    beat,
		Beats:   m.beats,
		DeltaMs: float64(delta) / float64(time.Millisecond),
		TimeMs:  now.UnixMilli(),
	}
}
