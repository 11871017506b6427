//go:build tinygo && avr && debug

package main

import (
	"groundrover.dev/firmware/internal/arena"
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/diag"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// debugIntervalMs is how often the debug build dumps executor and
// arena diagnostics over the UART used by diag.Printf
// (original_source's avr_async::driver::POLL_CALL_COUNT and mem.rs's
// allocator high-water mark had no periodic reporting of their own;
// this adds one, the way the teacher's debug_sh2.go adds a terminal
// reader the production build doesn't carry).
const debugIntervalMs = 2000

type debugTask struct {
	exec   *sched.Executor
	waiter *sched.Waiter
}

func (d *debugTask) Poll(w waker.Waker) {
	if d.waiter == nil {
		return
	}
	if _, ready := d.waiter.Poll(w); !ready {
		return
	}
	d.waiter.Reset()

	var pollBuf, usedBuf [10]byte
	used, _ := arena.Stats()
	// The AVR sink writes its format string verbatim, so each piece is
	// passed as its own literal text.
	diag.Printf("polls=")
	diag.Printf(string(diag.WriteUint32(&pollBuf, d.exec.PollCount())))
	diag.Printf(" arena_used=")
	diag.Printf(string(diag.WriteUint32(&usedBuf, uint32(used))))
}

// installDebugTask spawns the periodic diagnostics dumper as its own
// task. No-op build (debug_off.go) installs nothing.
func installDebugTask(exec *sched.Executor, clk *clock.Clock) {
	t := &debugTask{exec: exec, waiter: sched.NewWaiter(clk, debugIntervalMs)}
	exec.Spawn(t)
}
