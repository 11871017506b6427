package clock

import (
	"testing"

	"groundrover.dev/firmware/internal/waker"
)

// fakeHardware is a host-side stand-in for the TIMER0 registers,
// letting the clock logic itself be exercised without real hardware.
type fakeHardware struct {
	counter   uint8
	pending   bool
	critDepth int
}

func (f *fakeHardware) Counter() uint8         { return f.counter }
func (f *fakeHardware) OverflowPending() bool  { return f.pending }
func (f *fakeHardware) AdvanceCompareTarget()  {}
func (f *fakeHardware) EnterCritical() uint8 {
	f.critDepth++
	return 0
}
func (f *fakeHardware) ExitCritical(uint8) {
	f.critDepth--
}

func TestMicrosFormula(t *testing.T) {
	hw := &fakeHardware{counter: 10}
	c := New(hw)
	// 10 ticks * 4us = 40us, no overflow yet.
	if got := c.Micros(); got != 40 {
		t.Fatalf("Micros() = %d, want 40", got)
	}
	c.HandleOverflow()
	// One full overflow elapsed: 1024us + 40us.
	if got := c.Micros(); got != 1024+40 {
		t.Fatalf("Micros() after overflow = %d, want %d", got, 1024+40)
	}
}

func TestMicrosPendingOverflowRace(t *testing.T) {
	hw := &fakeHardware{counter: 5, pending: true}
	c := New(hw)
	// The overflow ISR hasn't incremented overflowCount yet, but TIFR0
	// shows the wrap already happened, so Micros must add it in.
	if got := c.Micros(); got != 5*TickUs+OverflowUs {
		t.Fatalf("Micros() = %d, want %d", got, 5*TickUs+OverflowUs)
	}
}

func TestMillisAdvancesOnTick(t *testing.T) {
	hw := &fakeHardware{}
	c := New(hw)
	for i := 0; i < 5; i++ {
		c.HandleMillisTick()
	}
	if got := c.Millis(); got != 5 {
		t.Fatalf("Millis() = %d, want 5", got)
	}
}

func TestRegisteredWakerFiresAtDeadline(t *testing.T) {
	hw := &fakeHardware{}
	c := New(hw)
	woke := false
	waker.SetHook(func(id uint8) { woke = true })
	defer waker.SetHook(nil)

	c.RegisterTimedWaker(c.Millis()+3, waker.New(0))
	for i := 0; i < 2; i++ {
		c.HandleMillisTick()
	}
	if woke {
		t.Fatal("waker fired before its deadline")
	}
	c.HandleMillisTick() // millis now == 3, the deadline.
	if !woke {
		t.Fatal("waker did not fire at its deadline")
	}
}

func TestQueueExhaustionIsFatal(t *testing.T) {
	hw := &fakeHardware{}
	c := New(hw)
	var fatal string
	SetFatalHook(func(msg string) { fatal = msg })
	defer SetFatalHook(func(msg string) { panic(msg) })

	for i := 0; i < MaxTimedWakers; i++ {
		c.RegisterTimedWaker(100, waker.New(uint8(i)))
	}
	c.RegisterTimedWaker(100, waker.New(99))
	if fatal == "" {
		t.Fatal("expected fatal hook to fire on queue exhaustion")
	}
}

func TestQueueMinRecomputedAfterRemoval(t *testing.T) {
	hw := &fakeHardware{}
	c := New(hw)
	waker.SetHook(func(uint8) {})
	defer waker.SetHook(nil)

	c.RegisterTimedWaker(10, waker.New(0))
	c.RegisterTimedWaker(20, waker.New(1))
	if c.queue.min != 10 {
		t.Fatalf("min = %d, want 10", c.queue.min)
	}
	c.queue.wakeExpired(10)
	if c.queue.len() != 1 {
		t.Fatalf("len = %d, want 1", c.queue.len())
	}
	if c.queue.min != 20 {
		t.Fatalf("min after removal = %d, want 20", c.queue.min)
	}
}
