// Package rover wires the drivers together into the five-state mode
// machine described in spec.md §4.11: Initialization, Calibration,
// Exploration, BoundaryDetected, and Rotation. Each mode is a
// sched.Future[Mode] that resolves to the next mode to run, matching
// the teacher's habit of small structs with an explicit poll-shaped
// control method.
package rover

import (
	"groundrover.dev/firmware/driver/eeprom"
	"groundrover.dev/firmware/driver/imu"
	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/driver/motor"
	"groundrover.dev/firmware/driver/pushbutton"
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/diag"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// UpdateDelayMs is the mode machine's default tick period
// (original_source/src/state_machine/mod.rs: UPDATE_DELAY_MS).
const UpdateDelayMs = 100

// Kind identifies which mode a Mode value represents.
type Kind uint8

const (
	Initialization Kind = iota
	Calibration
	Exploration
	BoundaryDetected
	Rotation
)

// Mode is the tagged union the original expresses as a Rust enum with
// per-variant payloads (State::Exploration{found_edge},
// State::Rotation{angle}). Only the fields relevant to Kind are
// meaningful; the rest are left at their zero value.
type Mode struct {
	Kind      Kind
	FoundEdge bool
	Angle     float32
}

// LED abstracts the single status LED toggled during calibration and by
// the heartbeat task.
type LED interface {
	Toggle()
}

// Rover owns every driver and the current mode, and implements
// sched.Task by repeatedly driving the current mode's Future to
// completion and advancing to whatever mode it resolves to.
type Rover struct {
	Motor  *motor.Controller
	IR     *irsensor.Sensors
	IMU    *imu.Device
	EEPROM *eeprom.EEPROM
	Button *pushbutton.Button
	Clock  *clock.Clock
	LED    LED

	mode   Mode
	future sched.Future[Mode]
}

// New constructs a Rover starting in Initialization, matching
// build_state_machine's initial State::Initialization.
func New(m *motor.Controller, ir *irsensor.Sensors, im *imu.Device, ee *eeprom.EEPROM, btn *pushbutton.Button, clk *clock.Clock, led LED) *Rover {
	return &Rover{
		Motor:  m,
		IR:     ir,
		IMU:    im,
		EEPROM: ee,
		Button: btn,
		Clock:  clk,
		LED:    led,
		mode:   Mode{Kind: Initialization},
	}
}

// Poll implements sched.Task. It never completes.
func (r *Rover) Poll(w waker.Waker) {
	for {
		if r.future == nil {
			r.future = r.buildFuture(r.mode)
		}
		next, ready := r.future.Poll(w)
		if !ready {
			return
		}
		r.mode = next
		r.future = nil
	}
}

func (r *Rover) buildFuture(m Mode) sched.Future[Mode] {
	switch m.Kind {
	case Initialization:
		return r.initializationFuture()
	case Calibration:
		return r.calibrationFuture()
	case Exploration:
		return r.explorationFuture(m.FoundEdge)
	case BoundaryDetected:
		return r.boundaryFuture()
	case Rotation:
		return r.rotationFuture(m.Angle)
	}
	diag.Fatal("rover: unknown mode kind")
	return nil
}
