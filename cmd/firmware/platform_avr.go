//go:build tinygo && avr

package main

import (
	"device/avr"
	"machine"
	"runtime/interrupt"

	"tinygo.org/x/drivers"

	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/driver/motor"
	"groundrover.dev/firmware/internal/clock"
)

// Pin assignments (original_source/src/uno/mod.rs's Uno::init, adapted
// to machine's naming).
var (
	ledPin        = machine.D13
	buttonPin     = machine.D12
	motorLeftDir  = machine.D8
	motorLeftPWM  = machine.D10
	motorRightDir = machine.D7
	motorRightPWM = machine.D9
	i2cSDA        = machine.A4
	i2cSCL        = machine.A5
)

// IR sensor pins in channel order; irPinMap gives each one's port and
// bit (original_source/src/uno/mod.rs: IRSensors::new(d5, a2, a0, d11, a3, d4)).
var irPins = [irsensor.NumChannels]machine.Pin{
	machine.D5, machine.A2, machine.A0, machine.D11, machine.A3, machine.D4,
}

const (
	serialBaud = 57600
	i2cSpeed   = 25000
)

// timer0ClockHW implements clock.Hardware against TIMER0, configured
// for 16MHz/64 (4us/tick), matching internal/clock's TickUs constant.
type timer0ClockHW struct{}

func (timer0ClockHW) Counter() uint8 {
	return avr.TCNT0.Get()
}

func (timer0ClockHW) OverflowPending() bool {
	return avr.TIFR0.HasBits(avr.TIFR0_TOV0)
}

func (timer0ClockHW) AdvanceCompareTarget() {
	avr.OCR0A.Set(avr.OCR0A.Get() + clock.TicksPerMs)
}

func (timer0ClockHW) EnterCritical() uint8 {
	st := interrupt.Disable()
	if st.CanRestore() {
		return 1
	}
	return 0
}

func (timer0ClockHW) ExitCritical(token uint8) {
	if token != 0 {
		interrupt.Enable()
	}
}

var boundClock *clock.Clock
var boundIR *irsensor.Sensors

func bindClock(clk *clock.Clock) { boundClock = clk }
func bindIRSensors(ir *irsensor.Sensors) {
	boundIR = ir
	configurePinChangeInterrupts()
}

//export __vector_16
func timer0OverflowISR() {
	if boundClock != nil {
		boundClock.HandleOverflow()
	}
}

//export __vector_14
func timer0CompareAISR() {
	if boundClock != nil {
		boundClock.HandleMillisTick()
	}
}

func configureTimer0() {
	// Normal mode, prescaler /64 (CS01|CS00).
	avr.TCCR0A.Set(0)
	avr.TCCR0B.Set(avr.TCCR0B_CS01 | avr.TCCR0B_CS00)
	avr.OCR0A.Set(clock.TicksPerMs)
	avr.TIMSK0.Set(avr.TIMSK0_TOIE0 | avr.TIMSK0_OCIE0A)
}

// pinChangeIRHW implements irsensor.Hardware over the six discrete
// sensor pins, reconfiguring all of them as a unit per read
// (original_source/src/uno/ir_sensors.rs's charge/float cycle).
type pinChangeIRHW struct{}

func (pinChangeIRHW) ConfigureOutputsHigh() {
	for _, p := range irPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}
}

func (pinChangeIRHW) ConfigureFloatingInputs() {
	for _, p := range irPins {
		p.Configure(machine.PinConfig{Mode: machine.PinInputFloating})
	}
}

func (pinChangeIRHW) DelayMicros(us uint16) {
	machine.DelayMicroseconds(uint32(us))
}

func (pinChangeIRHW) EnablePinChangeInterrupts() {
	avr.PCICR.SetBits(0b111) // PCIE0, PCIE1, PCIE2
}

func (pinChangeIRHW) DisablePinChangeInterrupts() {
	avr.PCICR.ClearBits(0b111)
}

func configurePinChangeInterrupts() {
	// Unmask the pin-change bit for every sensor pin in its port's mask
	// register (PCMSK0/1/2), matching irPins' port assignment.
	avr.PCMSK0.SetBits(1 << 3) // D11 (PB3), D13 stays out of scope
	avr.PCMSK1.SetBits(1<<2 | 1<<0 | 1<<3)
	avr.PCMSK2.SetBits(1<<5 | 1<<4)
}

//export __vector_3
func pcint0ISR() {
	if boundIR != nil {
		boundIR.HandlePinChange(0, avr.PINB.Get())
	}
}

//export __vector_4
func pcint1ISR() {
	if boundIR != nil {
		boundIR.HandlePinChange(1, avr.PINC.Get())
	}
}

//export __vector_5
func pcint2ISR() {
	if boundIR != nil {
		boundIR.HandlePinChange(2, avr.PIND.Get())
	}
}

func irPinMap() [irsensor.NumChannels]irsensor.PinMap {
	// Port indices follow HandlePinChange's dispatch above: 0=PORTB,
	// 1=PORTC, 2=PORTD.
	return [irsensor.NumChannels]irsensor.PinMap{
		{Port: 2, Bit: 5}, // D5  -> PORTD
		{Port: 1, Bit: 2}, // A2  -> PORTC
		{Port: 1, Bit: 0}, // A0  -> PORTC
		{Port: 0, Bit: 3}, // D11 -> PORTB
		{Port: 1, Bit: 3}, // A3  -> PORTC
		{Port: 2, Bit: 4}, // D4  -> PORTD
	}
}

// avrMotorHW drives the two direction pins directly and the two PWM
// pins through machine's PWM peripheral.
type avrMotorHW struct {
	leftPWM, rightPWM machine.PWM
	leftCh, rightCh   uint8
}

func (h *avrMotorHW) SetDirection(ch motor.Channel, dir motor.Direction) {
	pin := motorLeftDir
	if ch == motor.Right {
		pin = motorRightDir
	}
	// Resolves SPEC_FULL.md open question (a): Forward drives the
	// direction pin low, Reverse drives it high.
	if dir == motor.Forward {
		pin.Low()
	} else {
		pin.High()
	}
}

func (h *avrMotorHW) SetDuty(ch motor.Channel, duty uint8) {
	if ch == motor.Left {
		h.leftPWM.Set(h.leftCh, uint32(duty))
		return
	}
	h.rightPWM.Set(h.rightCh, uint32(duty))
}

// avrEEPROMHW drives the core EEAR/EEDR/EECR registers directly; no bus
// is involved (see DESIGN.md).
type avrEEPROMHW struct{}

func (avrEEPROMHW) WritePending() bool {
	return avr.EECR.HasBits(avr.EECR_EEPE)
}

func (avrEEPROMHW) ReadByte(addr uint8) uint8 {
	avr.EEAR.Set(uint16(addr))
	avr.EECR.SetBits(avr.EECR_EERE)
	return avr.EEDR.Get()
}

func (avrEEPROMHW) WriteByte(addr, value uint8) {
	avr.EEAR.Set(uint16(addr))
	avr.EEDR.Set(value)
	// The master write-enable and the write-enable must be two
	// separate instructions with nothing able to interleave.
	avr.EECR.SetBits(avr.EECR_EEMPE)
	avr.EECR.SetBits(avr.EECR_EEPE)
}

func (avrEEPROMHW) EnterCritical() uint8 {
	st := interrupt.Disable()
	if st.CanRestore() {
		return 1
	}
	return 0
}

func (avrEEPROMHW) ExitCritical(token uint8) {
	if token != 0 {
		interrupt.Enable()
	}
}

// avrButtonHW reads the pull-up input pin directly.
type avrButtonHW struct{}

func (avrButtonHW) IsLow() bool {
	return !buttonPin.Get()
}

// avrI2CBus adapts any tinygo.org/x/drivers.I2C bus (machine.I2C
// satisfies it as-is) to imu.Bus's write/write-read register shape.
type avrI2CBus struct {
	i2c drivers.I2C
}

func (b *avrI2CBus) WriteRegister(addr, reg, value uint8) error {
	return b.i2c.Tx(uint16(addr), []byte{reg, value}, nil)
}

func (b *avrI2CBus) ReadRegisters(addr, reg uint8, out []byte) error {
	return b.i2c.Tx(uint16(addr), []byte{reg}, out)
}

type avrSink struct {
	uart *machine.UART
}

func (s *avrSink) Printf(format string, args ...any) {
	// No heap for fmt.Sprintf on this target; callers only ever pass a
	// literal format with no args in the AVR build's diagnostic paths.
	s.uart.Write([]byte(format))
}

func (s *avrSink) Fatal(msg string) {
	s.uart.Write([]byte("FATAL: "))
	s.uart.Write([]byte(msg))
	for {
		ledPin.High()
		machine.DelayMicroseconds(100_000)
		ledPin.Low()
		machine.DelayMicroseconds(100_000)
	}
}

type avrLED struct{}

func (avrLED) Toggle() { ledPin.Set(!ledPin.Get()) }

// Init brings up every peripheral and returns the Platform main.go
// drives.
func Init() *Platform {
	machine.InitSerial()
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	buttonPin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	motorLeftDir.Configure(machine.PinConfig{Mode: machine.PinOutput})
	motorRightDir.Configure(machine.PinConfig{Mode: machine.PinOutput})

	pwm := machine.Timer1
	pwm.Configure(machine.PWMConfig{})
	leftCh, _ := pwm.Channel(motorLeftPWM)
	rightCh, _ := pwm.Channel(motorRightPWM)

	machine.I2C0.Configure(machine.I2CConfig{
		Frequency: i2cSpeed,
		SDA:       i2cSDA,
		SCL:       i2cSCL,
	})

	configureTimer0()

	return &Platform{
		Sink:     &avrSink{uart: machine.Serial},
		ClockHW:  timer0ClockHW{},
		MotorHW:  &avrMotorHW{leftPWM: pwm, rightPWM: pwm, leftCh: leftCh, rightCh: rightCh},
		IRHW:     pinChangeIRHW{},
		IRPins:   irPinMap(),
		IMUBus:   &avrI2CBus{i2c: machine.I2C0},
		EEPROMHW: avrEEPROMHW{},
		ButtonHW: avrButtonHW{},
		LED:      avrLED{},

		Idle: func() {
			avr.Asm("sleep")
		},
		EnableInterrupts: func() {
			interrupt.Enable()
		},
		BindClock:     bindClock,
		BindIRSensors: bindIRSensors,
	}
}
