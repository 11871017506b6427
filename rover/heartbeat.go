package rover

import (
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// HeartbeatIntervalMs is the status LED's blink period. Not present in
// the distilled spec but kept from original_source/src/uno/led.rs's
// make_led_driver, which runs a standalone toggle-and-wait task for the
// same status pin the calibration mode also toggles.
const HeartbeatIntervalMs = 1000

// HeartbeatTask blinks led forever, independent of the mode machine.
type HeartbeatTask struct {
	led    LED
	waiter *sched.Waiter
}

// NewHeartbeatTask constructs a HeartbeatTask bound to clk/led.
func NewHeartbeatTask(clk *clock.Clock, led LED) *HeartbeatTask {
	return &HeartbeatTask{led: led, waiter: sched.NewWaiter(clk, HeartbeatIntervalMs)}
}

// Poll implements sched.Task. It never completes.
func (h *HeartbeatTask) Poll(w waker.Waker) {
	if _, ready := h.waiter.Poll(w); !ready {
		return
	}
	h.waiter.Reset()
	h.led.Toggle()
}
