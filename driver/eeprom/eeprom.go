// Package eeprom implements suspendable byte/word/dword access to the
// on-chip EEPROM (spec.md §4.8), used to persist IMU and IR calibration
// extremes across power cycles.
package eeprom

import (
	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// Layout (spec.md §6): IMU extremes occupy [0, 8), IR extremes occupy
// [8, 32), two bytes per value.
const (
	IMUXMinAddr = 0
	IMUXMaxAddr = 2
	IMUYMinAddr = 4
	IMUYMaxAddr = 6

	IR0MinAddr = 8
	IR0MaxAddr = 10
	IR1MinAddr = 12
	IR1MaxAddr = 14
	IR2MinAddr = 16
	IR2MaxAddr = 18
	IR3MinAddr = 20
	IR3MaxAddr = 22
	IR4MinAddr = 24
	IR4MaxAddr = 26
	IR5MinAddr = 28
	IR5MaxAddr = 30

	EndAddr = 32
)

// IRMinAddrs and IRMaxAddrs give the six IR channels' calibration
// addresses in channel order, so callers that loop over channels (the
// mode machine's IR calibration stage) don't have to name all twelve
// constants by hand.
var IRMinAddrs = [6]uint8{IR0MinAddr, IR1MinAddr, IR2MinAddr, IR3MinAddr, IR4MinAddr, IR5MinAddr}
var IRMaxAddrs = [6]uint8{IR0MaxAddr, IR1MaxAddr, IR2MaxAddr, IR3MaxAddr, IR4MaxAddr, IR5MaxAddr}

// pollDelayMs is how long a busy-wait on EEPE backs off between polls
// (original_source/src/uno/eeprom.rs: `Waiter::new(1).await`).
const pollDelayMs = 1

// Hardware abstracts the EEAR/EEDR/EECR register trio.
type Hardware interface {
	// WritePending reports whether EECR.EEPE is still set from a
	// previous write.
	WritePending() bool
	// ReadByte performs one synchronous EEAR/EERE/EEDR read cycle.
	ReadByte(addr uint8) uint8
	// WriteByte performs one synchronous EEAR/EEDR/EEMPE/EEPE write
	// cycle. Callers must hold a critical section across this call
	// (spec.md §4.8: "the master write-enable and the write-enable
	// must be separate instructions with no interrupt between them").
	WriteByte(addr uint8, value uint8)
	EnterCritical() (token uint8)
	ExitCritical(token uint8)
}

// EEPROM drives the suspendable read/write operations.
type EEPROM struct {
	hw  Hardware
	clk *clock.Clock
}

// New constructs an EEPROM bound to hw/clk.
func New(hw Hardware, clk *clock.Clock) *EEPROM {
	return &EEPROM{hw: hw, clk: clk}
}

// ReadByte returns a Future that completes with the byte at addr once
// any pending write has finished.
func (e *EEPROM) ReadByte(addr uint8) sched.Future[uint8] {
	return &readByteOp{e: e, addr: addr, waiter: sched.NewWaiter(e.clk, pollDelayMs)}
}

type readByteOp struct {
	e      *EEPROM
	addr   uint8
	waiter *sched.Waiter
}

func (r *readByteOp) Poll(w waker.Waker) (uint8, bool) {
	for r.e.hw.WritePending() {
		if _, ready := r.waiter.Poll(w); !ready {
			return 0, false
		}
		r.waiter.Reset()
	}
	return r.e.hw.ReadByte(r.addr), true
}

// WriteByte returns a Future that completes once value has been
// written to addr, waiting out any write already in progress first.
func (e *EEPROM) WriteByte(addr, value uint8) sched.Future[struct{}] {
	return &writeByteOp{e: e, addr: addr, value: value, waiter: sched.NewWaiter(e.clk, pollDelayMs)}
}

type writeByteOp struct {
	e      *EEPROM
	addr   uint8
	value  uint8
	waiter *sched.Waiter
}

func (r *writeByteOp) Poll(w waker.Waker) (struct{}, bool) {
	for r.e.hw.WritePending() {
		if _, ready := r.waiter.Poll(w); !ready {
			return struct{}{}, false
		}
		r.waiter.Reset()
	}
	token := r.e.hw.EnterCritical()
	r.e.hw.WriteByte(r.addr, r.value)
	r.e.hw.ExitCritical(token)
	return struct{}{}, true
}

// ReadU16 reads a little-endian 16-bit value across two bytes.
func (e *EEPROM) ReadU16(addr uint8) sched.Future[uint16] {
	return &readU16Op{e: e, addr: addr}
}

type readU16Op struct {
	e     *EEPROM
	addr  uint8
	stage int
	lo    uint8
	read  sched.Future[uint8]
}

func (r *readU16Op) Poll(w waker.Waker) (uint16, bool) {
	if r.stage == 0 {
		r.read = r.e.ReadByte(r.addr)
		r.stage = 1
	}
	if r.stage == 1 {
		v, ready := r.read.Poll(w)
		if !ready {
			return 0, false
		}
		r.lo = v
		r.read = r.e.ReadByte(r.addr + 1)
		r.stage = 2
	}
	v, ready := r.read.Poll(w)
	if !ready {
		return 0, false
	}
	return uint16(r.lo) | uint16(v)<<8, true
}

// WriteU16 writes a little-endian 16-bit value across two bytes.
func (e *EEPROM) WriteU16(addr uint8, value uint16) sched.Future[struct{}] {
	return &writeU16Op{e: e, addr: addr, value: value}
}

type writeU16Op struct {
	e     *EEPROM
	addr  uint8
	value uint16
	stage int
	write sched.Future[struct{}]
}

func (r *writeU16Op) Poll(w waker.Waker) (struct{}, bool) {
	if r.stage == 0 {
		r.write = r.e.WriteByte(r.addr, uint8(r.value))
		r.stage = 1
	}
	if r.stage == 1 {
		if _, ready := r.write.Poll(w); !ready {
			return struct{}{}, false
		}
		r.write = r.e.WriteByte(r.addr+1, uint8(r.value>>8))
		r.stage = 2
	}
	return r.write.Poll(w)
}

// ReadU32 reads a little-endian 32-bit value across four bytes.
func (e *EEPROM) ReadU32(addr uint8) sched.Future[uint32] {
	return &readU32Op{e: e, addr: addr}
}

type readU32Op struct {
	e     *EEPROM
	addr  uint8
	i     int
	value uint32
	read  sched.Future[uint8]
}

func (r *readU32Op) Poll(w waker.Waker) (uint32, bool) {
	for r.i < 4 {
		if r.read == nil {
			r.read = r.e.ReadByte(r.addr + uint8(r.i))
		}
		v, ready := r.read.Poll(w)
		if !ready {
			return 0, false
		}
		r.value |= uint32(v) << (8 * uint(r.i))
		r.read = nil
		r.i++
	}
	return r.value, true
}

// WriteU32 writes a little-endian 32-bit value across four bytes.
//
// original_source/src/uno/eeprom.rs's write_eeprom_u32 shifts the
// fourth byte by 23 instead of 24, corrupting the top byte on every
// write despite read_eeprom_u32 correctly using 24 on the read side.
// This is the bug spec.md §9 open question (c) asks to resolve; the
// correct 24-bit shift is used here.
func (e *EEPROM) WriteU32(addr uint8, value uint32) sched.Future[struct{}] {
	return &writeU32Op{e: e, addr: addr, value: value}
}

type writeU32Op struct {
	e     *EEPROM
	addr  uint8
	value uint32
	i     int
	write sched.Future[struct{}]
}

func (r *writeU32Op) Poll(w waker.Waker) (struct{}, bool) {
	for r.i < 4 {
		if r.write == nil {
			b := uint8(r.value >> (8 * uint(r.i)))
			r.write = r.e.WriteByte(r.addr+uint8(r.i), b)
		}
		if _, ready := r.write.Poll(w); !ready {
			return struct{}{}, false
		}
		r.write = nil
		r.i++
	}
	return struct{}{}, true
}
