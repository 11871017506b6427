// Package sched implements the firmware's cooperative, single-threaded
// task executor (spec.md §4.4) and the suspendable operations built on
// top of it: Future[T], for operations that eventually produce a
// value, and Waiter, the millisecond delay future. Tasks are driven
// exclusively by Poll; there are no goroutines anywhere in this
// package, by design (spec.md's Non-goals explicitly rule out
// preemptive scheduling and fairness guarantees between tasks).
package sched

import "groundrover.dev/firmware/internal/waker"

// MaxTasks is the fixed capacity of the executor's task table.
const MaxTasks = 8

// Task is a non-terminating suspendable computation. Its output type is
// the uninhabited type in the original (a mode machine or motor loop
// never returns); Go has no uninhabited type, so Task.Poll simply
// returns nothing — a Poll that wants to report a value implements
// Future[T] instead and is driven from inside some Task's state
// machine, never registered with the executor directly.
type Task interface {
	Poll(w waker.Waker)
}

// Future is a suspendable operation that eventually produces a T.
// Poll returns (zero, false) while pending and (value, true) exactly
// once, after which the future must not be polled again. This mirrors
// the standard library's asynchronous-context contract
// (core::future::Future in the original) using Go generics instead of
// an unsafe raw-waker vtable — no teacher package in the corpus
// implements this shape natively; see DESIGN.md.
type Future[T any] interface {
	Poll(w waker.Waker) (T, bool)
}

// Executor is the fixed-capacity array of task slots described in
// spec.md §4.4. One Executor is constructed during bring-up and its
// Run never returns.
type Executor struct {
	tasks [MaxTasks]Task
	ready [MaxTasks]bool
	n     uint8

	// idle is the processor's low-power wait instruction, run once per
	// sweep so the CPU wakes only on the next interrupt (spec.md §5,
	// "Idle behaviour"). The AVR build installs `asm volatile("sleep")`;
	// tests pass nil and drive Sweep directly instead of calling Run.
	idle func()

	pollCount uint32
}

// fatalHook reports capacity exhaustion; installed by bring-up to call
// internal/diag.Fatal. Defaults to panic so tests see failures plainly.
var fatalHook = func(msg string) { panic(msg) }

// SetFatalHook installs the function invoked when Spawn overflows the
// task table.
func SetFatalHook(f func(msg string)) {
	fatalHook = f
}

// NewExecutor constructs an Executor and installs it as the target of
// every waker.Wake call for the remainder of the program.
func NewExecutor(idle func()) *Executor {
	e := &Executor{idle: idle}
	waker.SetHook(e.markReady)
	return e
}

// Spawn places t in the next free task slot and marks it ready for the
// first sweep. Valid only before Run is called. Fatal if the table is
// full (spec.md §7, "Capacity exhaustion").
func (e *Executor) Spawn(t Task) waker.Waker {
	if e.n >= MaxTasks {
		fatalHook("sched: executor task table exhausted")
		return waker.Waker{}
	}
	id := e.n
	e.tasks[id] = t
	e.ready[id] = true
	e.n++
	return waker.New(id)
}

// markReady is installed as the global wake hook; it's the Go
// equivalent of the raw waker vtable's wake/wake_by_ref entries.
func (e *Executor) markReady(id uint8) {
	if id < e.n {
		e.ready[id] = true
	}
}

// Sweep polls every task currently marked ready exactly once, clearing
// each ready bit before polling it (not after), so a wake issued from
// within a poll is observed on the next sweep rather than lost
// (spec.md §4.4). Exported so tests can drive a bounded number of
// sweeps instead of calling Run, which never returns.
func (e *Executor) Sweep() {
	for i := uint8(0); i < e.n; i++ {
		if !e.ready[i] {
			continue
		}
		e.ready[i] = false
		e.pollCount++
		e.tasks[i].Poll(waker.New(i))
	}
}

// Run sweeps forever, idling the processor between sweeps. It never
// returns; this is the firmware's entire top-level control flow once
// bring-up has spawned the initial tasks.
func (e *Executor) Run() {
	for {
		e.Sweep()
		if e.idle != nil {
			e.idle()
		}
	}
}

// PollCount reports the number of task polls performed so far, a debug
// diagnostic (SPEC_FULL.md's poll-count supplement;
// original_source/src/avr_async/driver.rs's POLL_CALL_COUNT).
func (e *Executor) PollCount() uint32 {
	return e.pollCount
}
