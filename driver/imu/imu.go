// Package imu implements the magnetometer/accelerometer driver and
// heading computation (spec.md §4.10), built on an I2C bus using the
// same transaction shape as tinygo.org/x/drivers' register-read
// helpers.
package imu

import (
	"math"

	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// I2C addresses and registers (original_source/src/uno/imu.rs).
const (
	MagAccAddr    = 0b0011101
	MagAccCtrl0   = 0x1f
	MagStatusReg  = 0x07
	MagRegOut     = 0x08
)

// Timing and smoothing constants.
const (
	TotalCalibrationSamples = 100
	TimeBetweenSamplesMs    = 50
	SmoothingIters          = 10
)

// Bus abstracts the I2C transactions the driver needs, matching the
// write/write-read shape of tinygo.org/x/drivers' sensor packages
// (e.g. drivers.I2C's Tx method) rather than exposing raw register
// twiddling.
type Bus interface {
	// WriteRegister writes a single control byte to reg.
	WriteRegister(addr uint8, reg uint8, value uint8) error
	// ReadRegisters reads len(out) bytes starting at reg. Multi-byte
	// bursts pass reg|0x80 (the auto-increment bit the LSM303DLHC-style
	// part requires); the bus sends reg unchanged.
	ReadRegisters(addr uint8, reg uint8, out []byte) error
}

// Device drives the IMU. Bring-up happens in New, matching the
// original's constructor which configures the accelerometer and
// magnetometer control registers before returning.
type Device struct {
	bus Bus
	clk *clock.Clock

	xMin, xRange float32
	yMin, yRange float32
}

// New constructs a Device and configures the sensor: 50Hz output data
// rate with all axes enabled on the accelerometer, then high-resolution
// continuous-conversion mode at +/-4 gauss on the magnetometer.
func New(bus Bus, clk *clock.Clock) (*Device, error) {
	d := &Device{bus: bus, clk: clk}
	// 0101 -> 50Hz output data rate, 0111 -> all axes enabled.
	if err := bus.WriteRegister(MagAccAddr, MagAccCtrl0+1, 0b01010111); err != nil {
		return nil, err
	}
	// 0 -> temperature sensor disabled, 11 -> high resolution,
	// 100 -> 50Hz output data rate, 00 -> interrupts not latched.
	if err := bus.WriteRegister(MagAccAddr, MagAccCtrl0+5, 0x70); err != nil {
		return nil, err
	}
	// +/- 4 gauss range.
	if err := bus.WriteRegister(MagAccAddr, MagAccCtrl0+6, 0x20); err != nil {
		return nil, err
	}
	// Continuous-conversion mode.
	if err := bus.WriteRegister(MagAccAddr, MagAccCtrl0+7, 0x00); err != nil {
		return nil, err
	}
	return d, nil
}

// SetCalibrationVector stores the magnetometer extremes used to scale
// readings into [-1, 1] before computing a heading.
func (d *Device) SetCalibrationVector(xMin, xMax, yMin, yMax int16) {
	d.xMin = float32(xMin)
	d.xRange = float32(xMax - xMin)
	d.yMin = float32(yMin)
	d.yRange = float32(yMax - yMin)
}

// ReadMagnetometer performs one raw three-axis read.
func (d *Device) ReadMagnetometer() (x, y, z int16, err error) {
	return d.readAxes16(MagAccAddr, MagRegOut)
}

// Ready reports whether the magnetometer's data-ready bit is set
// (original's is_magnetometer_ready, dropped from the distilled spec
// but useful for avoiding a stale read during calibration).
func (d *Device) Ready() (bool, error) {
	var status [1]byte
	if err := d.bus.ReadRegisters(MagAccAddr, MagStatusReg, status[:]); err != nil {
		return false, err
	}
	return status[0]&0x08 != 0, nil
}

func (d *Device) readAxes16(addr, reg uint8) (x, y, z int16, err error) {
	var data [6]byte
	if err := d.bus.ReadRegisters(addr, reg|0x80, data[:]); err != nil {
		return 0, 0, 0, err
	}
	x = int16(uint16(data[1])<<8 | uint16(data[0]))
	y = int16(uint16(data[3])<<8 | uint16(data[2]))
	z = int16(uint16(data[5])<<8 | uint16(data[4]))
	return x, y, z, nil
}

// GetCurrentHeadingDegrees averages SmoothingIters raw reads and
// returns the scaled heading in [0, 360).
func (d *Device) GetCurrentHeadingDegrees() (float32, error) {
	var sumX, sumY float32
	for i := 0; i < SmoothingIters; i++ {
		x, y, _, err := d.readAxes16(MagAccAddr, MagRegOut)
		if err != nil {
			return 0, err
		}
		sumX += float32(x)
		sumY += float32(y)
	}
	avgX := sumX / SmoothingIters
	avgY := sumY / SmoothingIters
	return d.computeHeadingDegrees(avgX, avgY), nil
}

// computeHeadingDegrees resolves spec.md §9 open question (b):
// original_source computes atan2(x_scaled, y_scaled), not
// atan2(y_scaled, x_scaled).
func (d *Device) computeHeadingDegrees(x, y float32) float32 {
	xScaled := 2*(x-d.xMin)/d.xRange - 1
	yScaled := 2*(y-d.yMin)/d.yRange - 1

	angle := float32(math.Atan2(float64(xScaled), float64(yScaled))) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return angle
}

// GetCalibrationVector returns a Future that samples the magnetometer
// TotalCalibrationSamples times, TimeBetweenSamplesMs apart, and
// returns the per-axis (min, max) extremes.
func (d *Device) GetCalibrationVector() sched.Future[[4]int16] {
	return &calibrateOp{d: d, xMin: math.MaxInt16, xMax: math.MinInt16, yMin: math.MaxInt16, yMax: math.MinInt16}
}

type calibrateOp struct {
	d                      *Device
	iter                   int
	xMin, xMax, yMin, yMax int16
	waiter                 *sched.Waiter
	err                    error
}

func (c *calibrateOp) Poll(w waker.Waker) ([4]int16, bool) {
	for c.iter < TotalCalibrationSamples {
		x, y, _, err := c.d.readAxes16(MagAccAddr, MagRegOut)
		if err != nil {
			c.err = err
			return [4]int16{}, true
		}
		if x < c.xMin {
			c.xMin = x
		}
		if x > c.xMax {
			c.xMax = x
		}
		if y < c.yMin {
			c.yMin = y
		}
		if y > c.yMax {
			c.yMax = y
		}

		if c.waiter == nil {
			c.waiter = sched.NewWaiter(c.d.clk, TimeBetweenSamplesMs)
		}
		if _, ready := c.waiter.Poll(w); !ready {
			return [4]int16{}, false
		}
		c.waiter.Reset()
		c.waiter = nil
		c.iter++
	}
	return [4]int16{c.xMin, c.xMax, c.yMin, c.yMax}, true
}

// Err returns any I2C error encountered during the most recent
// GetCalibrationVector run.
func (c *calibrateOp) Err() error { return c.err }
