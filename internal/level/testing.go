package level

import (
	"sync"
	"time"
)

// ManualClock is a controllable Clock for tests.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (m *ManualClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// ManualScheduler is a Scheduler whose timers fire only when the test says so.
// It is not safe for concurrent use.
type ManualScheduler struct {
	timers []*manualTimer
	clock  *ManualClock
}

type manualTimer struct {
	period  time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() {
	t.stopped = true
}

// NewManualScheduler returns a scheduler that advances clock (may be nil) on every step.
func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{clock: clock}
}

// Every registers a timer.
func (s *ManualScheduler) Every(period time.Duration, fn func()) Timer {
	t := &manualTimer{period: period, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Step fires every live timer once, in creation order, n times over. Timers
// started during a step first fire on the next one.
func (s *ManualScheduler) Step(n int) {
	for i := 0; i < n; i++ {
		live := s.timers[:0]
		for _, t := range s.timers {
			if !t.stopped {
				live = append(live, t)
			}
		}
		s.timers = live

		current := append([]*manualTimer(nil), s.timers...)
		if s.clock != nil {
			step := DefaultTickInterval
			if len(current) > 0 {
				step = current[0].period
			}
			s.clock.Advance(step)
		}
		for _, t := range current {
			if !t.stopped {
				t.fn()
			}
		}
	}
}

// Active returns the number of timers that have not been stopped.
func (s *ManualScheduler) Active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
