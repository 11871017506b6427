package arena

import "testing"

func TestPlaceStable(t *testing.T) {
	Reset()
	type payload struct {
		a uint32
		b uint8
	}
	p1 := Place(payload{a: 1, b: 2})
	p2 := Place(payload{a: 3, b: 4})
	if p1 == nil || p2 == nil {
		t.Fatal("place returned nil")
	}
	if p1.a != 1 || p1.b != 2 {
		t.Fatalf("p1 corrupted: %+v", *p1)
	}
	if p2.a != 3 || p2.b != 4 {
		t.Fatalf("p2 corrupted: %+v", *p2)
	}
	// Addresses must stay stable across further placements.
	addr := p1
	Place(payload{a: 5, b: 6})
	if p1 != addr {
		t.Fatalf("p1 address moved: got %p want %p", p1, addr)
	}
}

func TestPlaceExhaustionReportsFatal(t *testing.T) {
	Reset()
	var fatal string
	SetFatalHook(func(msg string) { fatal = msg })
	defer SetFatalHook(func(msg string) { panic(msg) })

	type big struct {
		buf [Size]byte
	}
	Place(big{})
	Place(big{})
	if fatal == "" {
		t.Fatal("expected exhaustion to report through fatalHook")
	}
}

func TestStats(t *testing.T) {
	Reset()
	used, cap := Stats()
	if used != 0 {
		t.Fatalf("fresh arena used = %d, want 0", used)
	}
	if cap != Size {
		t.Fatalf("capacity = %d, want %d", cap, Size)
	}
	Place(uint32(1))
	used, _ = Stats()
	if used == 0 {
		t.Fatal("used should increase after Place")
	}
}
