// ABOUTME: Frame schedulers that run one callback before the next refresh
// ABOUTME: TickerScheduler follows a refresh rate; ManualScheduler is stepped by tests
package frame

import (
	"sync"
	"time"
)

// DefaultRefreshRate is the display refresh rate used when none is configured
const DefaultRefreshRate = 60

// Scheduler runs fn once before the next refresh, passing the refresh time.
// Only one callback is pending at a time; scheduling again replaces it.
type Scheduler interface {
	Schedule(fn func(time.Time))
}

// TickerScheduler fires pending callbacks on a fixed-rate ticker.
// Callbacks run on the ticker goroutine, one at a time.
type TickerScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	pending func(time.Time)

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewTickerScheduler starts a scheduler refreshing rate times per second
func NewTickerScheduler(rate int) *TickerScheduler {
	if rate <= 0 {
		rate = DefaultRefreshRate
	}

	s := &TickerScheduler{
		interval: time.Second / time.Duration(rate),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Interval returns the refresh period
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

// Schedule registers fn for the next refresh
func (s *TickerScheduler) Schedule(fn func(time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = fn
}

// Stop halts the ticker and waits for a running callback to return
func (s *TickerScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *TickerScheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			fn := s.pending
			s.pending = nil
			s.mu.Unlock()

			if fn != nil {
				fn(now)
			}
		}
	}
}

// ManualScheduler holds the pending callback until Step is called
type ManualScheduler struct {
	mu      sync.Mutex
	pending func(time.Time)
	fired   int
}

// NewManualScheduler creates an idle manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule registers fn for the next Step
func (s *ManualScheduler) Schedule(fn func(time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = fn
}

// Step runs the pending callback synchronously with the given refresh time.
// Returns false when nothing was pending.
func (s *ManualScheduler) Step(at time.Time) bool {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	if fn != nil {
		s.fired++
	}
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(at)
	return true
}

// Pending reports whether a callback is waiting
func (s *ManualScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Fired returns how many callbacks Step has run
func (s *ManualScheduler) Fired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}
