// Package clock turns a single 8-bit hardware timer into a millisecond
// and microsecond wall clock, and owns the fixed-capacity bag of
// time-triggered wakers the millisecond tick consults (spec.md §4.2,
// §4.3). The original firmware (original_source/src/uno/timers.rs)
// keeps the timed-waker bag in the same file as the clock ISRs, and this
// package keeps it beside them (queue.go) for the same reason: both are
// driven by the TIMER0_COMPA handler.
package clock

import "groundrover.dev/firmware/internal/waker"

// Hardware timing constants (spec.md §6 "Boundary values"). TIMER0 is
// clocked at 16MHz/64, i.e. 4µs per tick, and overflows every 256 ticks.
const (
	TickUs     = 4
	OverflowUs = TickUs * 256
	TicksPerMs = 1000 / TickUs // 250 ticks per millisecond
)

// MaxTimedWakers is the fixed capacity of the timed-waker bag.
const MaxTimedWakers = 8

// sentinelMin is the "no entries" value for the bag's min field: the
// largest uint32, which the millisecond counter only reaches in its
// last millisecond before wrapping (~49 days).
const sentinelMin = ^uint32(0)

// Hardware abstracts the TIMER0 register access spec.md §4.2 describes.
// The AVR build implements it against the real registers
// (cmd/firmware/platform_avr.go); the host build fakes it so the clock
// logic itself is unit-testable off target.
type Hardware interface {
	// Counter reads TCNT0, the free-running 8-bit tick counter.
	Counter() uint8
	// OverflowPending reports the TOV0 flag in TIFR0: whether TCNT0 has
	// wrapped since the overflow ISR last ran, a race the overflow ISR
	// has not yet had a chance to observe.
	OverflowPending() bool
	// AdvanceCompareTarget bumps OCR0A by TicksPerMs, wrapping modulo
	// 256 (the "modular arithmetic works!" trick from the original).
	AdvanceCompareTarget()
	// EnterCritical disables interrupts and returns a token to restore
	// the prior state; ExitCritical consumes it. Used for the handful
	// of instructions that must not be interleaved with an ISR.
	EnterCritical() (token uint8)
	ExitCritical(token uint8)
}

// Clock is the millisecond/microsecond wall clock plus timed-waker bag.
// One Clock is constructed during bring-up and lives for the program's
// entire lifetime (spec.md §3 "Lifecycle").
type Clock struct {
	hw Hardware

	// Mutated only from interrupt context; read from task context
	// under EnterCritical/ExitCritical (spec.md §3 "Timer state").
	overflowCount uint32
	millisCount   uint32

	queue timedWakerQueue
}

// New constructs a Clock bound to hw. It does not program the timer;
// the board-support layer does that. Call once during bring-up, before
// interrupts are enabled.
func New(hw Hardware) *Clock {
	return &Clock{
		hw:    hw,
		queue: timedWakerQueue{min: sentinelMin},
	}
}

// Micros returns microseconds elapsed since bring-up, wrapping at
// roughly 71 minutes. See MicrosNoInterrupt for the formula; this
// variant wraps it in a critical section for callers running with
// interrupts enabled.
func (c *Clock) Micros() uint32 {
	tok := c.hw.EnterCritical()
	v := c.microsLocked()
	c.hw.ExitCritical(tok)
	return v
}

// MicrosNoInterrupt is the ISR-context variant of Micros: it assumes
// interrupts are already masked and skips the enable/disable pair, so
// pin-change handlers that need a timestamp don't double-mask (spec.md
// §9, "the _no_interrupt companions of micros exist to avoid double-
// masking inside ISRs").
func (c *Clock) MicrosNoInterrupt() uint32 {
	return c.microsLocked()
}

// microsLocked implements spec.md §4.2's formula: counter×4 +
// (overflow_count + pending)×1024. The pending-flag addition
// compensates for the race where TCNT0 has already wrapped but the
// overflow ISR hasn't yet incremented overflowCount.
func (c *Clock) microsLocked() uint32 {
	count := uint32(c.hw.Counter())
	var pending uint32
	if c.hw.OverflowPending() {
		pending = 1
	}
	return count*TickUs + (c.overflowCount+pending)*OverflowUs
}

// Millis returns milliseconds elapsed since bring-up, wrapping at
// roughly 49 days, read atomically under a critical section.
func (c *Clock) Millis() uint32 {
	tok := c.hw.EnterCritical()
	v := c.millisCount
	c.hw.ExitCritical(tok)
	return v
}

// RegisterTimedWaker pushes (deadlineMs, w) into the timed-waker bag
// under a critical section. Fatal on capacity exhaustion (spec.md §7).
func (c *Clock) RegisterTimedWaker(deadlineMs uint32, w waker.Waker) {
	tok := c.hw.EnterCritical()
	ok := c.queue.push(deadlineMs, w)
	c.hw.ExitCritical(tok)
	if !ok {
		fatalHook("clock: timed-waker queue exhausted")
	}
}

// fatalHook is a package-level indirection to internal/diag.Fatal,
// installed by bring-up, so this package doesn't need to import diag
// just to report one fatal condition (and stays trivially testable
// without pulling in a Sink).
var fatalHook = func(msg string) { panic(msg) }

// SetFatalHook installs the function invoked on capacity exhaustion.
func SetFatalHook(f func(msg string)) {
	fatalHook = f
}

// HandleOverflow is the TIMER0_OVF interrupt handler.
func (c *Clock) HandleOverflow() {
	c.overflowCount++
}

// HandleMillisTick is the TIMER0_COMPA interrupt handler: advances the
// millisecond counter, wakes every timed waker whose deadline has
// passed, and reprograms the next compare match.
func (c *Clock) HandleMillisTick() {
	c.millisCount++
	if c.millisCount >= c.queue.min {
		c.queue.wakeExpired(c.millisCount)
	}
	c.hw.AdvanceCompareTarget()
}
