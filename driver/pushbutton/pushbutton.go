// Package pushbutton implements the debounced pushbutton reader used
// to step through calibration/configuration prompts (spec.md §4.9).
package pushbutton

import (
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// DebounceMs is how long a detected edge must hold before it's
// accepted (original_source/src/uno/pushbutton.rs: DEBOUNCE_MS).
const DebounceMs = 10

// PollDelayMs is how long Wait backs off between polls while the pin
// hasn't reached the target state yet, matching the mode machine's own
// tick period (original_source/src/state_machine/mod.rs: UPDATE_DELAY_MS).
const PollDelayMs = 100

// NoDeadline disables the end_time_ms cutoff.
const NoDeadline = ^uint32(0)

// State is the pin level a caller can wait for.
type State uint8

const (
	Pressed State = iota
	Released
)

// Hardware abstracts the pull-up input pin.
type Hardware interface {
	// IsLow reports whether the button is currently pressed (active
	// low, per the pull-up wiring).
	IsLow() bool
}

// Button drives the debounced wait operations.
type Button struct {
	hw  Hardware
	clk *clock.Clock
}

// New constructs a Button bound to hw/clk.
func New(hw Hardware, clk *clock.Clock) *Button {
	return &Button{hw: hw, clk: clk}
}

func (b *Button) matches(state State) bool {
	low := b.hw.IsLow()
	if state == Pressed {
		return low
	}
	return !low
}

const (
	waitStateCheck = iota
	waitStateDebounce
)

// Wait returns a Future that resolves true once the button reaches
// state and holds it through a DebounceMs settle, or false if
// deadlineMs elapses first (pass NoDeadline to wait indefinitely).
func (b *Button) Wait(state State, deadlineMs uint32) sched.Future[bool] {
	return &waitOp{b: b, state: state, deadlineMs: deadlineMs}
}

type waitOp struct {
	b          *Button
	state      State
	deadlineMs uint32
	phase      int
	waiter     *sched.Waiter
}

func (w *waitOp) Poll(wk waker.Waker) (bool, bool) {
	for {
		if w.b.clk.Millis() > w.deadlineMs {
			return false, true
		}
		switch w.phase {
		case waitStateCheck:
			if !w.b.matches(w.state) {
				if w.waiter == nil {
					w.waiter = sched.NewWaiter(w.b.clk, PollDelayMs)
				}
				if _, ready := w.waiter.Poll(wk); !ready {
					return false, false
				}
				w.waiter.Reset()
				continue
			}
			w.waiter = sched.NewWaiter(w.b.clk, DebounceMs)
			w.phase = waitStateDebounce
			if _, ready := w.waiter.Poll(wk); !ready {
				return false, false
			}
			continue
		case waitStateDebounce:
			if _, ready := w.waiter.Poll(wk); !ready {
				return false, false
			}
			if w.b.matches(w.state) {
				return true, true
			}
			w.waiter = nil
			w.phase = waitStateCheck
			continue
		}
	}
}

// WaitForPress waits indefinitely for a full press-then-release cycle,
// each edge independently debounced.
func (b *Button) WaitForPress() sched.Future[struct{}] {
	return &waitForPressForeverOp{op: waitForPressOp{b: b, deadlineMs: NoDeadline}}
}

type waitForPressForeverOp struct {
	op waitForPressOp
}

func (w *waitForPressForeverOp) Poll(wk waker.Waker) (struct{}, bool) {
	_, ready := w.op.Poll(wk)
	return struct{}{}, ready
}

// WaitForPressBefore waits for a full press-then-release cycle, giving
// up at deadlineMs. Reports whether the full cycle completed in time.
func (b *Button) WaitForPressBefore(deadlineMs uint32) sched.Future[bool] {
	return &waitForPressOp{b: b, deadlineMs: deadlineMs}
}

type waitForPressOp struct {
	b          *Button
	deadlineMs uint32
	phase      int
	pressOk    bool
	wait       sched.Future[bool]
}

func (w *waitForPressOp) Poll(wk waker.Waker) (bool, bool) {
	if w.phase == 0 {
		w.wait = w.b.Wait(Pressed, w.deadlineMs)
		w.phase = 1
	}
	if w.phase == 1 {
		ok, ready := w.wait.Poll(wk)
		if !ready {
			return false, false
		}
		w.pressOk = ok
		w.wait = w.b.Wait(Released, w.deadlineMs)
		w.phase = 2
	}
	ok, ready := w.wait.Poll(wk)
	if !ready {
		return false, false
	}
	return w.pressOk && ok, true
}

// CountPressesBefore counts complete press-release cycles observed
// before endTimeMs, per original_source's count_presses_before.
func (b *Button) CountPressesBefore(endTimeMs uint32) sched.Future[uint8] {
	return &countPressesOp{b: b, endTimeMs: endTimeMs}
}

type countPressesOp struct {
	b         *Button
	endTimeMs uint32
	count     uint8
	press     sched.Future[bool]
}

func (c *countPressesOp) Poll(wk waker.Waker) (uint8, bool) {
	for {
		if c.b.clk.Millis() > c.endTimeMs {
			return c.count, true
		}
		if c.press == nil {
			c.press = c.b.WaitForPressBefore(c.endTimeMs)
		}
		ok, ready := c.press.Poll(wk)
		if !ready {
			return 0, false
		}
		if ok {
			c.count++
		}
		c.press = nil
	}
}
