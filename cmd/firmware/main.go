// Command firmware is the rover's entire program: bring-up constructs
// the clock, executor, and drivers, spawns the motor controller, mode
// machine, and heartbeat as tasks, then hands control to the executor
// forever.
package main

import (
	"groundrover.dev/firmware/driver/eeprom"
	"groundrover.dev/firmware/driver/imu"
	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/driver/motor"
	"groundrover.dev/firmware/driver/pushbutton"
	"groundrover.dev/firmware/internal/arena"
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/diag"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/rover"
)

// Platform bundles every board-specific dependency bring-up needs. The
// AVR build constructs one against real registers
// (platform_avr.go); the host build fakes every field so `go test`
// and `go vet` can typecheck the whole tree off target
// (platform_host.go).
type Platform struct {
	Sink diag.Sink

	ClockHW  clock.Hardware
	MotorHW  motor.Hardware
	IRHW     irsensor.Hardware
	IRPins   [irsensor.NumChannels]irsensor.PinMap
	IMUBus   imu.Bus
	EEPROMHW eeprom.Hardware
	ButtonHW pushbutton.Hardware
	LED      rover.LED

	// Idle runs once after every executor sweep; the AVR build issues
	// the SLEEP instruction, the host build is a no-op.
	Idle func()
	// EnableInterrupts is called once, after every task is spawned.
	EnableInterrupts func()

	// BindClock and BindIRSensors hand the platform layer the live
	// *clock.Clock/*irsensor.Sensors it needs to forward TIMER0 and
	// pin-change interrupts to, once bring-up has constructed them.
	// ISRs can't take arguments, so the platform layer stashes these in
	// package-level variables rather than a closure over the interrupt
	// vector itself.
	BindClock     func(*clock.Clock)
	BindIRSensors func(*irsensor.Sensors)
}

// Every singleton below except the executor is placed into the arena
// rather than kept as a plain Go pointer: bring-up runs once, before
// interrupts are enabled, and everything it builds must live at a
// stable address for the rest of the program's life with nothing freed
// along the way. The executor stays where NewExecutor allocated it,
// because NewExecutor installs that instance as the global wake hook.
func main() {
	p := Init()
	diag.SetSink(p.Sink)
	arena.SetFatalHook(diag.Fatal)

	clk := arena.Place(*clock.New(p.ClockHW))
	clock.SetFatalHook(diag.Fatal)
	sched.SetFatalHook(diag.Fatal)

	exec := sched.NewExecutor(p.Idle)

	p.BindClock(clk)

	motorCtl := arena.Place(*motor.New(p.MotorHW, clk))
	ir := arena.Place(*irsensor.New(p.IRHW, clk, p.IRPins))
	p.BindIRSensors(ir)
	imuDevVal, err := imu.New(p.IMUBus, clk)
	if err != nil {
		diag.Fatal("firmware: IMU bring-up failed")
	}
	imuDev := arena.Place(*imuDevVal)
	ee := arena.Place(*eeprom.New(p.EEPROMHW, clk))
	btn := arena.Place(*pushbutton.New(p.ButtonHW, clk))

	rv := arena.Place(*rover.New(motorCtl, ir, imuDev, ee, btn, clk, p.LED))
	heartbeat := arena.Place(*rover.NewHeartbeatTask(clk, p.LED))

	exec.Spawn(motorCtl)
	exec.Spawn(rv)
	exec.Spawn(heartbeat)
	installDebugTask(exec, clk)

	p.EnableInterrupts()
	exec.Run()
}
