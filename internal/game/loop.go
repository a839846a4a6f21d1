// Package game hosts a level on a single event-loop goroutine and drives its
// timers from the wall clock.
package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/level"
)

// ErrLoopStopped is returned when work is posted to a stopped loop.
var ErrLoopStopped = errors.New("game loop stopped")

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop with a task queue of the given size.
func NewLoop(queue int) *Loop {
	if queue < 1 {
		queue = 64
	}
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Stop ends Run. Tasks still queued are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Post queues fn. It blocks while the queue is full and reports false if the
// loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to return. If ctx ends before fn
// has started, fn is skipped and ctx.Err() is returned; once fn has started,
// Call waits for it so the caller always learns whether it ran.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	const (
		queued int32 = iota
		started
		abandoned
	)
	var state atomic.Int32
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		if !state.CompareAndSwap(queued, started) {
			return
		}
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		if state.CompareAndSwap(queued, abandoned) {
			return ctx.Err()
		}
		<-finished
		return nil
	}
}

// TickerScheduler implements level.Scheduler with time.Ticker, delivering
// every callback on the loop goroutine.
type TickerScheduler struct {
	loop *Loop
}

// NewTickerScheduler returns a scheduler posting into loop.
func NewTickerScheduler(loop *Loop) *TickerScheduler {
	return &TickerScheduler{loop: loop}
}

type tickerTimer struct {
	stopped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// Stop must be called from the loop goroutine; ticks already queued behind it are dropped.
func (t *tickerTimer) Stop() {
	t.stopped.Store(true)
	t.stopOnce.Do(func() { close(t.stop) })
}

// Every starts a ticker that posts fn to the loop every period.
func (s *TickerScheduler) Every(period time.Duration, fn func()) level.Timer {
	t := &tickerTimer{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-s.loop.done:
				return
			case <-ticker.C:
				if !s.loop.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				}) {
					return
				}
			}
		}
	}()
	return t
}
