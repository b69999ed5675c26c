// ABOUTME: Tests for the frame orchestrator
// ABOUTME: Drives ticks with the manual scheduler and checks ordering, timing, and failure handling
package frame

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

type staticPoller struct {
	size  int
	calls int
	err   error
}

func (p *staticPoller) Poll() ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return make([]float32, p.size), nil
}

type analyseCall struct {
	size  int
	delta time.Duration
	now   time.Time
}

type drawCall struct {
	data  any
	start time.Time
}

type recorder struct {
	analysed []analyseCall
	drawn    []drawCall
}

func (r *recorder) analyse(window []float32, delta time.Duration, now time.Time) any {
	r.analysed = append(r.analysed, analyseCall{size: len(window), delta: delta, now: now})
	return len(r.analysed)
}

func (r *recorder) Draw(data any, start time.Time) {
	r.drawn = append(r.drawn, drawCall{data: data, start: start})
}

func newTestOrchestrator(t *testing.T, sched Scheduler, r *recorder, start time.Time) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Scheduler: sched,
		Analyse:   r.analyse,
		Renderer:  r,
		Now:       func() time.Time { return start },
	})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	return o
}

func TestTenTicksAtFixedSpacing(t *testing.T) {
	sched := NewManualScheduler()
	r := &recorder{}
	start := time.Unix(1000, 0)
	o := newTestOrchestrator(t, sched, r, start)

	if err := o.Start(&staticPoller{size: 2048}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := 1; i <= 10; i++ {
		if !sched.Step(start.Add(time.Duration(i) * 16 * time.Millisecond)) {
			t.Fatalf("tick %d was not scheduled", i)
		}
	}

	if len(r.analysed) != 10 || len(r.drawn) != 10 {
		t.Fatalf("expected 10 analyser and 10 renderer calls, got %d and %d", len(r.analysed), len(r.drawn))
	}

	for i, call := range r.analysed {
		if call.size != 2048 {
			t.Errorf("tick %d: expected window of 2048, got %d", i+1, call.size)
		}
		if i > 0 {
			if !call.now.After(r.analysed[i-1].now) {
				t.Errorf("tick %d: time did not increase", i+1)
			}
			if call.delta != 16*time.Millisecond {
				t.Errorf("tick %d: expected 16ms delta, got %v", i+1, call.delta)
			}
		}
	}

	for i, call := range r.drawn {
		if !call.start.Equal(start) {
			t.Errorf("draw %d: expected session start time, got %v", i+1, call.start)
		}
		if call.data != i+1 {
			t.Errorf("draw %d: expected analysed data %d, got %v", i+1, i+1, call.data)
		}
	}

	stats := o.Stats()
	if stats.Ticks != 10 || stats.LastDelta != 16*time.Millisecond {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.FPS < 62 || stats.FPS > 63 {
		t.Errorf("expected ~62.5 fps, got %f", stats.FPS)
	}
}

func TestDeltaIsDifferenceOfTimestamps(t *testing.T) {
	sched := NewManualScheduler()
	r := &recorder{}
	start := time.Unix(0, 0)
	o := newTestOrchestrator(t, sched, r, start)
	_ = o.Start(&staticPoller{size: 32})

	stamps := []time.Duration{5, 21, 22, 60, 61}
	for _, ms := range stamps {
		sched.Step(start.Add(ms * time.Millisecond))
	}

	for n := 1; n < len(stamps); n++ {
		expected := (stamps[n] - stamps[n-1]) * time.Millisecond
		if r.analysed[n].delta != expected {
			t.Errorf("tick %d: expected delta %v, got %v", n+1, expected, r.analysed[n].delta)
		}
	}
}

func TestFirstTickBeforeStartDoesNotCrash(t *testing.T) {
	sched := NewManualScheduler()
	r := &recorder{}
	start := time.Unix(100, 0)
	o := newTestOrchestrator(t, sched, r, start)
	_ = o.Start(&staticPoller{size: 32})

	// A refresh stamp earlier than the start clock gives a negative first delta
	sched.Step(start.Add(-time.Millisecond))

	if len(r.drawn) != 1 {
		t.Fatalf("expected first tick to render, got %d", len(r.drawn))
	}
	if o.Stats().FPS != 0 {
		t.Errorf("expected no fps from a non-positive delta, got %f", o.Stats().FPS)
	}
}

func TestNextTickScheduledBeforeWork(t *testing.T) {
	sched := NewManualScheduler()
	var pendingDuringAnalyse bool

	o, err := New(Config{
		Scheduler: sched,
		Analyse: func(window []float32, delta time.Duration, now time.Time) any {
			pendingDuringAnalyse = sched.Pending()
			return nil
		},
		Renderer: RendererFunc(func(any, time.Time) {}),
	})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	_ = o.Start(&staticPoller{size: 32})

	sched.Step(time.Now())

	if !pendingDuringAnalyse {
		t.Error("expected next tick to be scheduled before analysis ran")
	}
}

func TestPollErrorStopsLoop(t *testing.T) {
	sched := NewManualScheduler()
	r := &recorder{}
	var reported error

	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	o, err := New(Config{
		Scheduler: sched,
		Analyse:   r.analyse,
		Renderer:  r,
		OnError:   func(err error) { reported = err },
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	pollErr := source.UsageErrorf("poll", "source is loading, not ready")
	poller := &staticPoller{err: pollErr}
	_ = o.Start(poller)

	sched.Step(time.Now())
	sched.Step(time.Now())

	if !errors.Is(reported, source.ErrUsage) {
		t.Errorf("expected usage error to be reported, got %v", reported)
	}
	if o.State() != Stopped {
		t.Errorf("expected Stopped, got %s", o.State())
	}
	if poller.calls != 1 {
		t.Errorf("expected polling to stop after the failure, got %d polls", poller.calls)
	}
	if len(r.analysed) != 0 || len(r.drawn) != 0 {
		t.Error("expected no analysis or rendering after a failed poll")
	}
	if got := testutil.ToFloat64(metrics.pollErrorsTotal); got != 1 {
		t.Errorf("expected 1 poll error recorded, got %f", got)
	}
}

func TestStartTwice(t *testing.T) {
	o := newTestOrchestrator(t, NewManualScheduler(), &recorder{}, time.Now())

	if o.State() != Uninitialized {
		t.Errorf("expected Uninitialized, got %s", o.State())
	}
	if err := o.Start(nil); !errors.Is(err, ErrNoPoller) {
		t.Errorf("expected ErrNoPoller, got %v", err)
	}
	if err := o.Start(&staticPoller{size: 32}); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if o.State() != Running {
		t.Errorf("expected Running, got %s", o.State())
	}
	if err := o.Start(&staticPoller{size: 32}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStopMakesPendingTickNoop(t *testing.T) {
	sched := NewManualScheduler()
	r := &recorder{}
	o := newTestOrchestrator(t, sched, r, time.Now())
	_ = o.Start(&staticPoller{size: 32})

	o.Stop()
	sched.Step(time.Now())

	if len(r.analysed) != 0 {
		t.Error("expected no work after Stop")
	}
	if sched.Pending() {
		t.Error("expected stopped loop not to reschedule")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	r := &recorder{}
	configs := []Config{
		{Analyse: r.analyse, Renderer: r},
		{Scheduler: NewManualScheduler(), Renderer: r},
		{Scheduler: NewManualScheduler(), Analyse: r.analyse},
	}
	for i, c := range configs {
		if _, err := New(c); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
}

func TestMetricsRecordTicks(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}

	sched := NewManualScheduler()
	r := &recorder{}
	start := time.Unix(0, 0)
	o, _ := New(Config{Scheduler: sched, Analyse: r.analyse, Renderer: r, Now: func() time.Time { return start }, Metrics: metrics})
	_ = o.Start(&staticPoller{size: 32})

	for i := 1; i <= 3; i++ {
		sched.Step(start.Add(time.Duration(i) * 20 * time.Millisecond))
	}

	if got := testutil.ToFloat64(metrics.ticksTotal); got != 3 {
		t.Errorf("expected 3 ticks, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.frameDelta); got != 0.02 {
		t.Errorf("expected 0.02s delta, got %f", got)
	}

	if _, err := NewMetrics(registry); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
