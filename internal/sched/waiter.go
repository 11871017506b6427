package sched

import (
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/waker"
)

// Waiter suspends the calling task for at least durationMs
// milliseconds (spec.md §4.5). On its first poll it snapshots a
// trigger deadline and registers a timed waker; on subsequent polls it
// checks the deadline without re-registering. It never spuriously
// returns ready, and registers at most one outstanding timed waker per
// instance.
type Waiter struct {
	clk        *clock.Clock
	durationMs uint32
	trigger    uint32
	registered bool
}

// NewWaiter constructs a Waiter bound to clk. Callers must ensure
// durationMs < 1<<31 so the deadline comparison is safe against
// millisecond-counter wraparound (spec.md §7, "Clock wrap").
func NewWaiter(clk *clock.Clock, durationMs uint32) *Waiter {
	return &Waiter{clk: clk, durationMs: durationMs}
}

// Poll implements Future[struct{}].
func (w *Waiter) Poll(wk waker.Waker) (struct{}, bool) {
	if !w.registered {
		w.trigger = w.clk.Millis() + w.durationMs
		w.clk.RegisterTimedWaker(w.trigger, wk)
		w.registered = true
		return struct{}{}, false
	}
	if w.clk.Millis() >= w.trigger {
		return struct{}{}, true
	}
	return struct{}{}, false
}

// Reset rearms the waiter for another wait of the same duration,
// starting from the next Poll. Loops that await the same duration
// repeatedly (the motor controller tick, the heartbeat, the EEPROM and
// pushbutton busy-polls) reuse one Waiter via Reset rather than
// allocating a fresh one each iteration.
func (w *Waiter) Reset() {
	w.registered = false
}
