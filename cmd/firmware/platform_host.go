//go:build !(tinygo && avr)

package main

import (
	"log"

	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/driver/motor"
	"groundrover.dev/firmware/internal/clock"
)

// hostClockHW reads a counter that is always zero and never reports an
// overflow. Good enough for `go vet`/`go build` to typecheck this
// package off target.
type hostClockHW struct{}

func (hostClockHW) Counter() uint8        { return 0 }
func (hostClockHW) OverflowPending() bool { return false }
func (hostClockHW) AdvanceCompareTarget() {}
func (hostClockHW) EnterCritical() uint8  { return 0 }
func (hostClockHW) ExitCritical(uint8)    {}

type hostMotorHW struct{}

func (hostMotorHW) SetDirection(motor.Channel, motor.Direction) {}
func (hostMotorHW) SetDuty(motor.Channel, uint8)                {}

type hostIRHW struct{}

func (hostIRHW) ConfigureOutputsHigh()       {}
func (hostIRHW) ConfigureFloatingInputs()    {}
func (hostIRHW) DelayMicros(uint16)          {}
func (hostIRHW) EnablePinChangeInterrupts()  {}
func (hostIRHW) DisablePinChangeInterrupts() {}

type hostEEPROMHW struct {
	mem [64]uint8
}

func (h *hostEEPROMHW) WritePending() bool        { return false }
func (h *hostEEPROMHW) ReadByte(addr uint8) uint8 { return h.mem[addr] }
func (h *hostEEPROMHW) WriteByte(addr, value uint8) {
	h.mem[addr] = value
}
func (h *hostEEPROMHW) EnterCritical() uint8 { return 0 }
func (h *hostEEPROMHW) ExitCritical(uint8)   {}

type hostButtonHW struct{}

func (hostButtonHW) IsLow() bool { return false }

type hostBus struct{}

func (hostBus) WriteRegister(addr, reg, value uint8) error { return nil }
func (hostBus) ReadRegisters(addr, reg uint8, out []byte) error {
	for i := range out {
		out[i] = 0
	}
	return nil
}

type hostSink struct{}

func (hostSink) Printf(format string, args ...any) { log.Printf(format, args...) }
func (hostSink) Fatal(msg string)                  { log.Fatal(msg) }

type hostLED struct{}

func (hostLED) Toggle() {}

func hostIRPinMap() [irsensor.NumChannels]irsensor.PinMap {
	var pins [irsensor.NumChannels]irsensor.PinMap
	for i := range pins {
		pins[i] = irsensor.PinMap{Port: i / 3, Bit: uint8(i % 3)}
	}
	return pins
}

// Init returns an all-fake Platform so the executable typechecks and
// links on a development host; main is never expected to run to
// completion here (exec.Run blocks forever, same as on-device).
func Init() *Platform {
	return &Platform{
		Sink:     hostSink{},
		ClockHW:  hostClockHW{},
		MotorHW:  hostMotorHW{},
		IRHW:     hostIRHW{},
		IRPins:   hostIRPinMap(),
		IMUBus:   hostBus{},
		EEPROMHW: &hostEEPROMHW{},
		ButtonHW: hostButtonHW{},
		LED:      hostLED{},

		Idle:             func() {},
		EnableInterrupts: func() {},
		BindClock:        func(*clock.Clock) {},
		BindIRSensors:    func(*irsensor.Sensors) {},
	}
}
