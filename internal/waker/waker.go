// Package waker defines the opaque task handle shared by the scheduler
// and the interrupt-driven subsystems that need to wake a suspended
// task (the millisecond tick, pin-change interrupts, I²C completion).
//
// It is split out of package sched so that internal/clock — which must
// invoke Wake from the millisecond-tick ISR — does not need to import
// the executor, and the executor does not need to import the clock.
package waker

// Waker is an opaque reference to a task, encoded as nothing more than
// the task's slot index (spec.md §3, "Waker-carried identity": wakers
// hold only the task's identifier, never a reference to its state).
// Because Waker is a plain comparable value, copying it is the entire
// "clone" operation from the standard asynchronous-context contract;
// there is no separate clone/wake_by_ref/drop to implement.
type Waker struct {
	id uint8
}

// New constructs a waker for the given executor task slot. Only the
// executor calls this.
func New(id uint8) Waker { return Waker{id: id} }

// ID returns the task slot this waker refers to.
func (w Waker) ID() uint8 { return w.id }

// hook is installed once by the executor during bring-up. Before that,
// Wake is a no-op, matching the original's EXECUTOR_INIT guard.
var hook func(id uint8)

// SetHook installs the function invoked by Wake. Called exactly once,
// by sched.NewExecutor.
func SetHook(f func(id uint8)) {
	hook = f
}

// Wake marks this waker's task ready to be polled on the scheduler's
// next sweep. Safe to call from interrupt context.
func (w Waker) Wake() {
	if hook != nil {
		hook(w.id)
	}
}
