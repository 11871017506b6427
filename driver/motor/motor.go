// Package motor implements the slew-rate-limited two-channel motor
// controller described in spec.md §4.6. It runs as its own sched.Task,
// independent of the mode state machine, which only ever touches the
// controller's targets.
package motor

import (
	"sync/atomic"

	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// MaxDelta is the maximum per-tick change in a channel's current value
// (spec.md §6, MAX_MOTOR_DELTA).
const MaxDelta = 0.1

// UpdateDelayMs is the controller's tick period (spec.md §6, motor
// UPDATE_DELAY_MS).
const UpdateDelayMs = 10

// Channel identifies one of the two drive channels.
type Channel uint8

const (
	Left Channel = iota
	Right
)

// Direction is the semantic direction a channel should drive, decoupled
// from the hardware's pin polarity. Resolving which polarity Forward
// maps to is the board-support layer's job (SPEC_FULL.md open question
// (a): the original sets the direction pin low for Forward, high for
// Reverse).
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

// Hardware abstracts the four motor pins (two direction outputs, two
// PWM outputs).
type Hardware interface {
	SetDirection(ch Channel, dir Direction)
	SetDuty(ch Channel, duty uint8)
}

// targetCell holds the two channels' target values, mutated by the mode
// machine and read by the controller's own tick. Guarded by a
// try-acquire flag rather than a blocking lock: spec.md §5 calls out
// that "a blocking lock in a single-threaded executor would deadlock",
// and a contended write is always safely retried on the writer's next
// call.
type targetCell struct {
	busy  atomic.Bool
	left  float32
	right float32
}

func (c *targetCell) trySet(left, right float32) bool {
	if !c.busy.CompareAndSwap(false, true) {
		return false
	}
	c.left, c.right = left, right
	c.busy.Store(false)
	return true
}

func (c *targetCell) tryScale(k float32) bool {
	if !c.busy.CompareAndSwap(false, true) {
		return false
	}
	c.left *= k
	c.right *= k
	c.busy.Store(false)
	return true
}

func (c *targetCell) get() (left, right float32) {
	return c.left, c.right
}

const (
	stateTick = iota
	stateWaiting
)

// Controller owns the two motor channels and runs as a sched.Task,
// ticking every UpdateDelayMs.
type Controller struct {
	hw  Hardware
	clk *clock.Clock

	targets targetCell

	leftCurrent, rightCurrent float32

	state  int
	waiter *sched.Waiter
}

// New constructs a Controller. Both current and target values start at
// zero.
func New(hw Hardware, clk *clock.Clock) *Controller {
	c := &Controller{hw: hw, clk: clk}
	c.waiter = sched.NewWaiter(clk, UpdateDelayMs)
	return c
}

// SetTargets requests new target values for both channels, clamped to
// [-1, 1] by the next tick's Translate step. Returns false if the
// request was dropped due to contention; the caller need not retry,
// since the controller task observes the change on its next tick
// regardless.
func (c *Controller) SetTargets(left, right float32) bool {
	return c.targets.trySet(left, right)
}

// ScaleTargets multiplies both current targets by k (used by the
// boundary-detected mode to reverse direction in place).
func (c *Controller) ScaleTargets(k float32) bool {
	return c.targets.tryScale(k)
}

// Poll implements sched.Task. The controller never completes.
func (c *Controller) Poll(w waker.Waker) {
	switch c.state {
	case stateTick:
		c.tick()
		c.state = stateWaiting
		c.waiter.Poll(w) // arm for the next cycle
	case stateWaiting:
		if _, ready := c.waiter.Poll(w); !ready {
			return
		}
		c.waiter.Reset()
		c.state = stateTick
		c.Poll(w)
	}
}

// tick advances current toward target by at most MaxDelta and drives
// the hardware (spec.md §4.6 steps 1-3).
func (c *Controller) tick() {
	targetLeft, targetRight := c.targets.get()
	c.leftCurrent = approach(c.leftCurrent, targetLeft, MaxDelta)
	c.rightCurrent = approach(c.rightCurrent, targetRight, MaxDelta)
	c.drive(Left, c.leftCurrent)
	c.drive(Right, c.rightCurrent)
}

// Current reports a channel's current (slew-limited) value, for tests
// and diagnostics.
func (c *Controller) Current(ch Channel) float32 {
	if ch == Left {
		return c.leftCurrent
	}
	return c.rightCurrent
}

func (c *Controller) drive(ch Channel, value float32) {
	dir, duty := computeDirectionAndThrottle(value)
	c.hw.SetDirection(ch, dir)
	c.hw.SetDuty(ch, duty)
}

// approach moves current toward target by at most maxDelta, landing
// exactly on target rather than overshooting (spec.md invariant 1).
func approach(current, target, maxDelta float32) float32 {
	if current == target {
		return current
	}
	if current < target-maxDelta {
		return current + maxDelta
	}
	if current > target+maxDelta {
		return current - maxDelta
	}
	return target
}

// computeDirectionAndThrottle clamps value to [-1, 1] and derives the
// semantic direction and 8-bit duty cycle (spec.md invariant 2):
// duty = round(|value| * 255), direction = Reverse iff value < 0.
func computeDirectionAndThrottle(value float32) (Direction, uint8) {
	value = clamp(value, -1, 1)
	dir := Forward
	if value < 0 {
		dir = Reverse
	}
	mag := value
	if mag < 0 {
		mag = -mag
	}
	duty := uint8(mag*255 + 0.5)
	return dir, duty
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
