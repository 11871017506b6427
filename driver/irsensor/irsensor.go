// Package irsensor implements the six-channel IR reflectance reader
// (spec.md §4.7): a discharge-time measurement across six pins spread
// over three ports, driven by pin-change interrupts that cooperate with
// the executor through shared state on *Sensors.
package irsensor

import (
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// NumChannels is the number of reflectance sensors.
const NumChannels = 6

// Boundary values (spec.md §6).
const (
	ChargeTimeUs        = 10
	TimeoutMs           = 2
	MaxSensorReadValue  = 2000
	MaxCalibratedValue  = 1000
	CalibrationIters    = 10
)

// Hardware abstracts the per-channel pin reconfiguration and the
// pin-change interrupt enable/disable that spec.md §4.7 describes as a
// single unit toggling three port masks at once.
type Hardware interface {
	// ConfigureOutputsHigh drives all six pins as outputs, high, to
	// begin the charge phase.
	ConfigureOutputsHigh()
	// ConfigureFloatingInputs switches all six pins back to floating
	// input so they begin discharging.
	ConfigureFloatingInputs()
	// DelayMicros busy-waits for the charge phase (spec.md step 2); too
	// short a delay to be worth suspending the executor for.
	DelayMicros(us uint16)
	EnablePinChangeInterrupts()
	DisablePinChangeInterrupts()
}

// PinMap locates one sensor's pin within the ISR dispatch: which of the
// three ports it lives on, and which bit of that port's level byte it
// is. Set once at construction from the board's wiring.
type PinMap struct {
	Port int
	Bit  uint8
}

type calibrationEntry struct {
	offset int16
	scale  float32
}

// Sensors holds the six-channel discharge-time state shared between
// task context (Read/Calibrate/ReadCalibrated) and the three
// pin-change ISRs (spec.md §3 "IR sensor state").
type Sensors struct {
	hw  Hardware
	clk *clock.Clock

	pins [NumChannels]PinMap

	// Mutated from both ISR and task context under the single-writer
	// discipline described in spec.md §5: only the ISR writes values[i]
	// for a channel once its triggered bit is set; only a Read in
	// progress (task context) prefills them with the start timestamp at
	// the start of a new read and clamps them when it finishes.
	values    [NumChannels]uint16
	triggered uint8
	start     uint16

	calibration [NumChannels]calibrationEntry
}

// New constructs a Sensors bound to hw/clk with the given pin mapping.
// Calibration starts at the original firmware's literal default: offset
// 0, scale MaxCalibratedValue (i.e. uncalibrated reads saturate near
// the top of the calibrated range until SetCalibrationVector is called
// or calibration data is loaded from EEPROM).
func New(hw Hardware, clk *clock.Clock, pins [NumChannels]PinMap) *Sensors {
	s := &Sensors{hw: hw, clk: clk, pins: pins}
	for i := range s.calibration {
		s.calibration[i] = calibrationEntry{offset: 0, scale: MaxCalibratedValue}
	}
	return s
}

// Values returns the six raw (uncalibrated) discharge times from the
// most recently completed read.
func (s *Sensors) Values() [NumChannels]uint16 {
	return s.values
}

// SetCalibrationVector stores per-channel (min, max) extremes as an
// affine map to [0, MaxCalibratedValue], mirroring
// original_source/src/uno/ir_sensors.rs's set_calibration_vector.
func (s *Sensors) SetCalibrationVector(mins, maxes [NumChannels]uint16) {
	for i := 0; i < NumChannels; i++ {
		rng := float32(maxes[i]) - float32(mins[i])
		s.calibration[i] = calibrationEntry{
			offset: int16(mins[i]),
			scale:  MaxCalibratedValue / rng,
		}
	}
}

// HandlePinChange is the pin-change ISR for the given port: for every
// sensor wired to that port that hasn't triggered yet and whose pin now
// reads low, it records the discharge time and marks it triggered.
// Called from interrupt context with interrupts already masked, so it
// uses clock.MicrosNoInterrupt rather than double-masking.
func (s *Sensors) HandlePinChange(port int, levels uint8) {
	end := uint16(s.clk.MicrosNoInterrupt())
	for i, pm := range s.pins {
		if pm.Port != port {
			continue
		}
		if s.triggered&(1<<uint(i)) != 0 {
			continue
		}
		if levels&(1<<pm.Bit) != 0 {
			continue // still high, hasn't discharged yet
		}
		s.values[i] = end - s.values[i] // modular subtraction
		s.triggered |= 1 << uint(i)
	}
}

// Read performs one discharge-time measurement across all six channels
// (spec.md §4.7 steps 1-8) and returns a Future that completes once the
// SENSOR_TIMEOUT_MS window has elapsed and stale/overflowing channels
// have been clamped.
func (s *Sensors) Read() sched.Future[struct{}] {
	return &readOp{s: s, waiter: sched.NewWaiter(s.clk, TimeoutMs)}
}

const (
	readStateStart = iota
	readStateFinish
)

type readOp struct {
	s      *Sensors
	state  int
	waiter *sched.Waiter
}

func (r *readOp) Poll(w waker.Waker) (struct{}, bool) {
	s := r.s
	switch r.state {
	case readStateStart:
		s.hw.ConfigureOutputsHigh()
		s.hw.DelayMicros(ChargeTimeUs)

		start := uint16(s.clk.Micros())
		s.start = start
		for i := range s.values {
			s.values[i] = start
		}
		s.triggered = 0

		s.hw.EnablePinChangeInterrupts()
		s.hw.ConfigureFloatingInputs()

		r.state = readStateFinish
		r.waiter.Poll(w)
		return struct{}{}, false
	case readStateFinish:
		if _, ready := r.waiter.Poll(w); !ready {
			return struct{}{}, false
		}
		s.hw.DisablePinChangeInterrupts()
		for i := range s.values {
			if s.values[i] == s.start || s.values[i] > MaxSensorReadValue {
				s.values[i] = MaxSensorReadValue
			}
		}
		return struct{}{}, true
	}
	return struct{}{}, false
}

// ReadCalibrated performs Read and applies the affine calibration map,
// clamping every channel to [0, MaxCalibratedValue] (spec.md invariant
// 5).
func (s *Sensors) ReadCalibrated() sched.Future[[NumChannels]uint16] {
	return &readCalibratedOp{s: s, read: s.Read()}
}

type readCalibratedOp struct {
	s    *Sensors
	read sched.Future[struct{}]
}

func (r *readCalibratedOp) Poll(w waker.Waker) ([NumChannels]uint16, bool) {
	if _, ready := r.read.Poll(w); !ready {
		return [NumChannels]uint16{}, false
	}
	var out [NumChannels]uint16
	for i := 0; i < NumChannels; i++ {
		e := r.s.calibration[i]
		v := (float32(int32(r.s.values[i])-int32(e.offset))) * e.scale
		switch {
		case v < 0:
			v = 0
		case v > MaxCalibratedValue:
			v = MaxCalibratedValue
		}
		out[i] = uint16(v)
	}
	return out, true
}

// Calibrate performs CalibrationIters reads and retains, per channel,
// the maximum value seen (dark=true) or the minimum (dark=false).
func (s *Sensors) Calibrate(dark bool) sched.Future[[NumChannels]uint16] {
	c := &calibrateOp{s: s, dark: dark}
	if !dark {
		for i := range c.extremes {
			c.extremes[i] = MaxSensorReadValue
		}
	}
	return c
}

type calibrateOp struct {
	s        *Sensors
	dark     bool
	iter     int
	extremes [NumChannels]uint16
	read     sched.Future[struct{}]
}

func (c *calibrateOp) Poll(w waker.Waker) ([NumChannels]uint16, bool) {
	for {
		if c.read == nil {
			if c.iter >= CalibrationIters {
				return c.extremes, true
			}
			c.read = c.s.Read()
		}
		if _, ready := c.read.Poll(w); !ready {
			return [NumChannels]uint16{}, false
		}
		vals := c.s.Values()
		for i := 0; i < NumChannels; i++ {
			if c.dark {
				if vals[i] > c.extremes[i] {
					c.extremes[i] = vals[i]
				}
			} else if vals[i] < c.extremes[i] {
				c.extremes[i] = vals[i]
			}
		}
		c.iter++
		c.read = nil
	}
}
