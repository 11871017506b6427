package sched

import (
	"testing"

	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/waker"
)

type fakeHardware struct {
	millis uint32
}

func (f *fakeHardware) Counter() uint8        { return 0 }
func (f *fakeHardware) OverflowPending() bool { return false }
func (f *fakeHardware) AdvanceCompareTarget() {}
func (f *fakeHardware) EnterCritical() uint8  { return 0 }
func (f *fakeHardware) ExitCritical(uint8)    {}

// newTestClock builds a clock.Clock so tests can advance millis
// deterministically by calling HandleMillisTick directly, simulating
// the TIMER0_COMPA ISR firing once per simulated millisecond.
func newTestClock() *clock.Clock {
	return clock.New(&fakeHardware{})
}

// selfRearmTask marks itself ready again the first time it's polled so
// tests can assert the ready bit is cleared before the poll, not after
// (spec.md §4.4): without that ordering, this self-rearm would be lost.
type selfRearmTask struct {
	polls int
	w     waker.Waker
}

func (t *selfRearmTask) Poll(w waker.Waker) {
	t.polls++
	t.w = w
	if t.polls == 1 {
		w.Wake()
	}
}

func TestSweepClearsReadyBeforePoll(t *testing.T) {
	e := NewExecutor(nil)
	task := &selfRearmTask{}
	e.Spawn(task)

	e.Sweep() // polls==1, calls Wake() on itself
	if task.polls != 1 {
		t.Fatalf("polls after first sweep = %d, want 1", task.polls)
	}
	e.Sweep() // should observe the wake from inside the first poll
	if task.polls != 2 {
		t.Fatalf("polls after second sweep = %d, want 2 (self-wake lost)", task.polls)
	}
}

func TestSweepSkipsNotReady(t *testing.T) {
	e := NewExecutor(nil)
	t1 := &countingTask{}
	e.Spawn(t1)
	e.Sweep()
	if t1.count != 1 {
		t.Fatalf("count = %d, want 1", t1.count)
	}
	e.Sweep() // t1 didn't re-mark itself ready, so no further polls.
	if t1.count != 1 {
		t.Fatalf("count after second sweep = %d, want 1 (polled a not-ready task)", t1.count)
	}
}

type countingTask struct{ count int }

func (t *countingTask) Poll(waker.Waker) { t.count++ }

func TestSpawnOverflowIsFatal(t *testing.T) {
	e := NewExecutor(nil)
	var fatal string
	SetFatalHook(func(msg string) { fatal = msg })
	defer SetFatalHook(func(msg string) { panic(msg) })

	for i := 0; i < MaxTasks; i++ {
		e.Spawn(&countingTask{})
	}
	e.Spawn(&countingTask{})
	if fatal == "" {
		t.Fatal("expected fatal hook on task table overflow")
	}
}

func TestWaiterNotReadyBeforeDeadline(t *testing.T) {
	clk := newTestClock()
	w := NewWaiter(clk, 100)
	_, ready := w.Poll(waker.New(0))
	if ready {
		t.Fatal("waiter ready on first poll")
	}
	for i := 0; i < 50; i++ {
		clk.HandleMillisTick()
	}
	_, ready = w.Poll(waker.New(0))
	if ready {
		t.Fatal("waiter ready before its deadline elapsed")
	}
}

func TestWaiterReadyAtDeadline(t *testing.T) {
	clk := newTestClock()
	w := NewWaiter(clk, 100)
	w.Poll(waker.New(0)) // registers
	for i := 0; i < 100; i++ {
		clk.HandleMillisTick()
	}
	_, ready := w.Poll(waker.New(0))
	if !ready {
		t.Fatal("waiter not ready at its deadline")
	}
}

// TestTwoWaitersOrderedByDeadline is scenario S2: a Waiter(100) spawned
// at t=0 and a Waiter(100) spawned at t=50 (i.e. firing at t=150)
// should become ready in that order.
func TestTwoWaitersOrderedByDeadline(t *testing.T) {
	clk := newTestClock()
	first := NewWaiter(clk, 100)
	first.Poll(waker.New(0))

	for i := 0; i < 50; i++ {
		clk.HandleMillisTick()
	}
	second := NewWaiter(clk, 100)
	second.Poll(waker.New(1))

	var firstReadyAt, secondReadyAt int = -1, -1
	for ms := 51; ms <= 200; ms++ {
		clk.HandleMillisTick()
		if firstReadyAt == -1 {
			if _, ready := first.Poll(waker.New(0)); ready {
				firstReadyAt = ms
			}
		}
		if secondReadyAt == -1 {
			if _, ready := second.Poll(waker.New(1)); ready {
				secondReadyAt = ms
			}
		}
	}
	if firstReadyAt != 100 {
		t.Fatalf("first waiter ready at %d, want 100", firstReadyAt)
	}
	if secondReadyAt != 150 {
		t.Fatalf("second waiter ready at %d, want 150", secondReadyAt)
	}
	if firstReadyAt >= secondReadyAt {
		t.Fatalf("waiters did not become ready in order: %d, %d", firstReadyAt, secondReadyAt)
	}
}
