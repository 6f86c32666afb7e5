// Package tick provides the single control thread that every trade runs on.
// Work is either scheduled a number of ticks ahead or queued from other
// goroutines; both execute serially inside Step.
package tick

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

// DefaultInterval is one server tick
const DefaultInterval = 50 * time.Millisecond

// ErrStopped is returned by Call when the loop is no longer running
var ErrStopped = errors.New("tick loop stopped")

// Timer is the handle of a scheduled callback
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was stopped before.
	Stop() bool
}

// Scheduler runs closures after a number of ticks
type Scheduler interface {
	After(ticks int, fn func()) Timer
}

type task struct {
	due     uint64
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func (t *task) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Loop is a cooperative tick scheduler
type Loop struct {
	tick  uint64
	seq   uint64
	tasks []*task

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// NewLoop creates a loop at tick zero
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Now returns the current tick
func (l *Loop) Now() uint64 {
	return l.tick
}

// After schedules fn to run ticks ticks from now. Must be called from the loop.
func (l *Loop) After(ticks int, fn func()) Timer {
	if ticks < 1 {
		ticks = 1
	}
	l.seq++
	t := &task{due: l.tick + uint64(ticks), seq: l.seq, fn: fn}
	l.tasks = append(l.tasks, t)
	return t
}

// Pending returns the number of scheduled callbacks that have not run or been stopped
func (l *Loop) Pending() int {
	n := 0
	for _, t := range l.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Step drains queued work, advances one tick and runs everything that is due
func (l *Loop) Step() {
	l.Drain()

	l.tick++

	var due []*task
	kept := l.tasks[:0]
	for _, t := range l.tasks {
		switch {
		case t.stopped:
		case t.due <= l.tick:
			due = append(due, t)
		default:
			kept = append(kept, t)
		}
	}
	l.tasks = kept

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})

	for _, t := range due {
		// An earlier callback in this tick may have stopped a later one
		if t.stopped {
			continue
		}
		t.fired = true
		l.run(t.fn)
	}
}

// Advance runs n steps
func (l *Loop) Advance(n int) {
	for i := 0; i < n; i++ {
		l.Step()
	}
}

// Do queues fn to run on the loop. Safe from any goroutine.
func (l *Loop) Do(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call queues fn and waits until it has run on the loop
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !l.Do(func() { done <- fn() }) {
		return ErrStopped
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain runs all queued work without advancing the tick
func (l *Loop) Drain() {
	for {
		l.mu.Lock()
		queue := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(queue) == 0 {
			return
		}
		for _, fn := range queue {
			l.run(fn)
		}
	}
}

// Run drives the loop until ctx is done. Queued work runs as soon as it arrives.
func (l *Loop) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Tick] loop started (interval %s)", interval)

	for {
		select {
		case <-ticker.C:
			l.Step()
		case <-l.wake:
			l.Drain()
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
			l.Drain()
			log.Printf("[Tick] loop stopped at tick %d", l.tick)
			return
		}
	}
}

// run isolates a panicking callback so one broken trade cannot stop the loop
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Tick] callback panicked at tick %d: %v", l.tick, r)
		}
	}()
	fn()
}
