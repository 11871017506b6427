//go:build !(tinygo && avr && debug)

package main

import (
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
)

// installDebugTask is a no-op on the production build and on the host
// build; neither spawns a diagnostics task.
func installDebugTask(exec *sched.Executor, clk *clock.Clock) {}
