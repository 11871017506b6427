package motor

import (
	"testing"

	"groundrover.dev/firmware/internal/clock"
	"groundrover.dev/firmware/internal/waker"
)

type fakeHardware struct {
	millis uint32
}

func (f *fakeHardware) Counter() uint8        { return 0 }
func (f *fakeHardware) OverflowPending() bool { return false }
func (f *fakeHardware) AdvanceCompareTarget() {}
func (f *fakeHardware) EnterCritical() uint8  { return 0 }
func (f *fakeHardware) ExitCritical(uint8)    {}

type recordedDrive struct {
	dir  Direction
	duty uint8
}

type fakeMotorHW struct {
	drives map[Channel]recordedDrive
}

func newFakeMotorHW() *fakeMotorHW {
	return &fakeMotorHW{drives: make(map[Channel]recordedDrive)}
}

func (f *fakeMotorHW) SetDirection(ch Channel, dir Direction) {
	r := f.drives[ch]
	r.dir = dir
	f.drives[ch] = r
}

func (f *fakeMotorHW) SetDuty(ch Channel, duty uint8) {
	r := f.drives[ch]
	r.duty = duty
	f.drives[ch] = r
}

func TestComputeDirectionAndThrottle(t *testing.T) {
	cases := []struct {
		v        float32
		wantDir  Direction
		wantDuty uint8
	}{
		{0, Forward, 0},
		{1, Forward, 255},
		{-1, Reverse, 255},
		{0.5, Forward, 128},
		{-0.5, Reverse, 128},
		{2, Forward, 255},  // clamp
		{-2, Reverse, 255}, // clamp
	}
	for _, c := range cases {
		dir, duty := computeDirectionAndThrottle(c.v)
		if dir != c.wantDir || duty != c.wantDuty {
			t.Errorf("computeDirectionAndThrottle(%v) = (%v, %v), want (%v, %v)", c.v, dir, duty, c.wantDir, c.wantDuty)
		}
	}
}

// TestSlewRate is scenario S1: after SetTargets(1, 1) at t=0, current
// after k ticks of UpdateDelayMs should be min(1, k*MaxDelta), reaching
// 1.0 at t>=100ms, with duty==128 around t=50ms.
func TestSlewRate(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	hw := newFakeMotorHW()
	c := New(hw, clk)
	c.SetTargets(1.0, 1.0)

	w := waker.New(0)

	// First Poll already ticks once (k=1) before arming the waiter.
	c.Poll(w)
	if got := c.Current(Left); !floatNear(got, MaxDelta) {
		t.Fatalf("current after first tick = %v, want %v", got, MaxDelta)
	}

	for k := 2; k <= 10; k++ {
		for i := 0; i < UpdateDelayMs; i++ {
			clk.HandleMillisTick()
		}
		c.Poll(w)
		want := float32(k) * MaxDelta
		if want > 1 {
			want = 1
		}
		if got := c.Current(Left); !floatNear(got, want) {
			t.Fatalf("current after tick %d = %v, want %v", k, got, want)
		}
		if k == 5 {
			if got := hw.drives[Left].duty; got != 128 {
				t.Fatalf("duty at t=50ms = %d, want 128", got)
			}
		}
	}

	if got := c.Current(Left); !floatNear(got, 1.0) {
		t.Fatalf("current after 10 ticks (100ms) = %v, want 1.0", got)
	}
}

func TestInvariantNeverOvershoots(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	hw := newFakeMotorHW()
	c := New(hw, clk)
	c.SetTargets(1.0, -1.0)
	w := waker.New(0)

	var prevLeft, prevRight float32
	for k := 0; k < 20; k++ {
		c.Poll(w)
		left, right := c.Current(Left), c.Current(Right)
		if delta := absf(left - prevLeft); delta > MaxDelta+1e-6 {
			t.Fatalf("tick %d: left moved by %v > MaxDelta", k, delta)
		}
		if delta := absf(right - prevRight); delta > MaxDelta+1e-6 {
			t.Fatalf("tick %d: right moved by %v > MaxDelta", k, delta)
		}
		prevLeft, prevRight = left, right
		for i := 0; i < UpdateDelayMs; i++ {
			clk.HandleMillisTick()
		}
	}
}

func TestContendedSetTargetsDropsSilently(t *testing.T) {
	clk := clock.New(&fakeHardware{})
	hw := newFakeMotorHW()
	c := New(hw, clk)
	c.targets.busy.Store(true) // simulate another writer mid-update
	if c.SetTargets(0.5, 0.5) {
		t.Fatal("SetTargets succeeded while cell was busy")
	}
	c.targets.busy.Store(false)
	if !c.SetTargets(0.5, 0.5) {
		t.Fatal("SetTargets failed once the cell was free")
	}
}

func floatNear(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-4
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
