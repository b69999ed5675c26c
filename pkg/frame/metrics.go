// ABOUTME: Prometheus metrics for the frame loop
// ABOUTME: Counts ticks and poll failures and observes tick body duration and frame delta
package frame

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records frame loop activity
type Metrics struct {
	ticksTotal      prometheus.Counter
	pollErrorsTotal prometheus.Counter
	tickDuration    prometheus.Histogram
	frameDelta      prometheus.Gauge
	framesPerSecond prometheus.Gauge
}

// NewMetrics creates and registers frame metrics
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scope_frame_ticks_total",
			Help: "Total number of frame ticks processed",
		}),
		pollErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scope_frame_poll_errors_total",
			Help: "Total number of stream buffer poll failures",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scope_frame_tick_duration_seconds",
			Help:    "Time spent polling, analysing, and rendering one frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
		}),
		frameDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scope_frame_delta_seconds",
			Help: "Wall-clock time between the last two ticks",
		}),
		framesPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scope_frames_per_second",
			Help: "Smoothed frame rate",
		}),
	}

	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ticksTotal.Describe(ch)
	m.pollErrorsTotal.Describe(ch)
	m.tickDuration.Describe(ch)
	m.frameDelta.Describe(ch)
	m.framesPerSecond.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ticksTotal.Collect(ch)
	m.pollErrorsTotal.Collect(ch)
	m.tickDuration.Collect(ch)
	m.frameDelta.Collect(ch)
	m.framesPerSecond.Collect(ch)
}

func (m *Metrics) recordTick(delta, body time.Duration, fps float64) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.tickDuration.Observe(body.Seconds())
	m.frameDelta.Set(delta.Seconds())
	m.framesPerSecond.Set(fps)
}

func (m *Metrics) recordPollError() {
	if m == nil {
		return
	}
	m.pollErrorsTotal.Inc()
}
