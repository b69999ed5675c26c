// ABOUTME: Frame orchestrator driving poll, analyse, and render once per refresh
// ABOUTME: Reschedules itself before doing any work so a slow frame never delays the next one
package frame

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// AnalyseFunc turns a sample window into analysed data
type AnalyseFunc func(window []float32, delta time.Duration, now time.Time) any

// Renderer draws analysed data
type Renderer interface {
	Draw(data any, start time.Time)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(data any, start time.Time)

// Draw calls f
func (f RendererFunc) Draw(data any, start time.Time) {
	f(data, start)
}

// Poller supplies one sample window per tick
type Poller interface {
	Poll() ([]float32, error)
}

// State is the orchestrator lifecycle state
type State int

const (
	Uninitialized State = iota
	Running
	Stopped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrAlreadyStarted = errors.New("frame loop already started")
	ErrNoPoller       = errors.New("frame loop requires a poller")
)

// Config wires the orchestrator to its collaborators
type Config struct {
	Scheduler Scheduler
	Analyse   AnalyseFunc
	Renderer  Renderer

	// Now stamps the session start time; defaults to time.Now
	Now func() time.Time

	// OnError receives the poll error that stopped the loop
	OnError func(error)

	Metrics   *Metrics
	LogErrors bool
}

// Stats summarises loop timing
type Stats struct {
	Ticks     uint64
	LastDelta time.Duration
	FPS       float64 // exponentially smoothed
}

// fpsSmoothing weights the newest frame in the FPS average
const fpsSmoothing = 0.1

// Orchestrator runs the per-frame pipeline
type Orchestrator struct {
	config Config

	mu       sync.Mutex
	state    State
	poller   Poller
	start    time.Time
	previous time.Time

	statsMu sync.Mutex
	stats   Stats
}

// New validates config and creates an orchestrator
func New(config Config) (*Orchestrator, error) {
	if config.Scheduler == nil {
		return nil, errors.New("frame loop requires a scheduler")
	}
	if config.Analyse == nil {
		return nil, errors.New("frame loop requires an analyse function")
	}
	if config.Renderer == nil {
		return nil, errors.New("frame loop requires a renderer")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Orchestrator{config: config}, nil
}

// Start records the session start time and schedules the first tick
func (o *Orchestrator) Start(p Poller) error {
	if p == nil {
		return ErrNoPoller
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Uninitialized {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, o.state)
	}

	o.poller = p
	o.start = o.config.Now()
	o.previous = o.start
	o.state = Running

	o.config.Scheduler.Schedule(o.tick)
	return nil
}

// Stop ends the loop; the pending tick becomes a no-op
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = Stopped
}

// State returns the lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StartTime returns the session start time
func (o *Orchestrator) StartTime() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.start
}

// Stats returns a snapshot of loop timing
func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.stats
}

func (o *Orchestrator) tick(now time.Time) {
	o.mu.Lock()
	if o.state != Running {
		o.mu.Unlock()
		return
	}
	// Reschedule first so the next refresh is never missed
	o.config.Scheduler.Schedule(o.tick)
	poller, start, previous := o.poller, o.start, o.previous
	o.mu.Unlock()

	began := time.Now()
	delta := now.Sub(previous)

	window, err := poller.Poll()
	if err != nil {
		o.fail(err)
		return
	}

	data := o.config.Analyse(window, delta, now)
	o.config.Renderer.Draw(data, start)

	o.mu.Lock()
	o.previous = now
	o.mu.Unlock()

	fps := o.recordStats(delta)
	o.config.Metrics.recordTick(delta, time.Since(began), fps)
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	o.state = Stopped
	o.mu.Unlock()

	o.config.Metrics.recordPollError()

	if o.config.LogErrors || o.config.OnError == nil {
		log.Printf("Frame loop stopped: poll failed: %v", err)
	}
	if o.config.OnError != nil {
		o.config.OnError(err)
	}
}

func (o *Orchestrator) recordStats(delta time.Duration) float64 {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	o.stats.Ticks++
	o.stats.LastDelta = delta

	if delta > 0 {
		instant := float64(time.Second) / float64(delta)
		if o.stats.FPS == 0 {
			o.stats.FPS = instant
		} else {
			o.stats.FPS += fpsSmoothing * (instant - o.stats.FPS)
		}
	}
	return o.stats.FPS
}
