package level

import "time"

// Clock supplies the level's notion of now.
type Clock interface {
	Now() time.Time
}

// Scheduler starts periodic timers. Callbacks must be delivered on the
// goroutine that owns the Coordinator.
type Scheduler interface {
	Every(period time.Duration, fn func()) Timer
}

// Timer is a running periodic timer. After Stop returns, its callback is not
// invoked again.
type Timer interface {
	Stop()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time {
	return time.Now()
}
