package imu

import (
	"math"
	"testing"

	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/waker"
)

type fakeHardware struct{}

func (f *fakeHardware) Counter() uint8        { return 0 }
func (f *fakeHardware) OverflowPending() bool { return false }
func (f *fakeHardware) AdvanceCompareTarget() {}
func (f *fakeHardware) EnterCritical() uint8  { return 0 }
func (f *fakeHardware) ExitCritical(uint8)    {}

// fakeBus plays back a fixed sequence of (x, y, z) magnetometer samples
// on each ReadRegisters call to MagRegOut, cycling if exhausted.
type fakeBus struct {
	writes  []uint8
	samples [][3]int16
	idx     int
}

func (f *fakeBus) WriteRegister(addr, reg, value uint8) error {
	f.writes = append(f.writes, reg)
	return nil
}

func (f *fakeBus) ReadRegisters(addr, reg uint8, out []byte) error {
	if reg == MagStatusReg|0x80 || reg == MagStatusReg {
		out[0] = 0x08
		return nil
	}
	s := f.samples[f.idx%len(f.samples)]
	f.idx++
	out[0] = byte(uint16(s[0]))
	out[1] = byte(uint16(s[0]) >> 8)
	out[2] = byte(uint16(s[1]))
	out[3] = byte(uint16(s[1]) >> 8)
	out[4] = byte(uint16(s[2]))
	out[5] = byte(uint16(s[2]) >> 8)
	return nil
}

func TestNewConfiguresAllFourRegisters(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	bus := &fakeBus{samples: [][3]int16{{0, 0, 0}}}
	if _, err := New(bus, clk); err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	want := []uint8{MagAccCtrl0 + 1, MagAccCtrl0 + 5, MagAccCtrl0 + 6, MagAccCtrl0 + 7}
	if len(bus.writes) != len(want) {
		t.Fatalf("wrote %d registers, want %d", len(bus.writes), len(want))
	}
	for i, reg := range want {
		if bus.writes[i] != reg {
			t.Fatalf("write %d went to reg %#x, want %#x", i, bus.writes[i], reg)
		}
	}
}

func TestReadMagnetometerDecodesLittleEndian(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	bus := &fakeBus{samples: [][3]int16{{1234, -5678, 42}}}
	d, _ := New(bus, clk)
	x, y, z, err := d.ReadMagnetometer()
	if err != nil {
		t.Fatal(err)
	}
	if x != 1234 || y != -5678 || z != 42 {
		t.Fatalf("ReadMagnetometer = (%d, %d, %d), want (1234, -5678, 42)", x, y, z)
	}
}

// TestHeadingUsesXThenYAtan2 locks in spec.md §9 open question (b):
// the heading is atan2(x_scaled, y_scaled), not the other order.
func TestHeadingUsesXThenYAtan2(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	bus := &fakeBus{samples: [][3]int16{{0, 0, 0}}}
	d, _ := New(bus, clk)
	d.SetCalibrationVector(-100, 100, -100, 100)

	// x_scaled = 1, y_scaled = 0 -> atan2(1, 0) = 90 degrees.
	got := d.computeHeadingDegrees(100, 0)
	want := float32(90)
	if math.Abs(float64(got-want)) > 0.5 {
		t.Fatalf("computeHeadingDegrees(100, 0) = %v, want ~%v", got, want)
	}
}

func TestHeadingWrapsNegativeToPositive(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	bus := &fakeBus{samples: [][3]int16{{0, 0, 0}}}
	d, _ := New(bus, clk)
	d.SetCalibrationVector(-100, 100, -100, 100)

	got := d.computeHeadingDegrees(-100, 0) // atan2(-1, 0) = -90 -> 270
	if got < 0 || got >= 360 {
		t.Fatalf("computeHeadingDegrees returned out-of-range angle %v", got)
	}
	want := float32(270)
	if math.Abs(float64(got-want)) > 0.5 {
		t.Fatalf("computeHeadingDegrees(-100, 0) = %v, want ~%v", got, want)
	}
}

func TestGetCalibrationVectorTracksExtremes(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	bus := &fakeBus{samples: [][3]int16{
		{10, 200, 0},
		{-50, -30, 0},
		{80, 90, 0},
	}}
	d, _ := New(bus, clk)

	op := d.GetCalibrationVector()
	w := waker.New(0)
	var result [4]int16
	ready := false
	for i := 0; i < 100*TotalCalibrationSamples && !ready; i++ {
		result, ready = op.Poll(w)
		if !ready {
			clk.HandleMillisTick()
		}
	}
	if !ready {
		t.Fatal("GetCalibrationVector never completed")
	}
	xMin, xMax, yMin, yMax := result[0], result[1], result[2], result[3]
	if xMin != -50 || xMax != 80 {
		t.Fatalf("x extremes = (%d, %d), want (-50, 80)", xMin, xMax)
	}
	if yMin != -30 || yMax != 200 {
		t.Fatalf("y extremes = (%d, %d), want (-30, 200)", yMin, yMax)
	}
}
