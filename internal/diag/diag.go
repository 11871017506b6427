// Package diag provides the firmware's only fatal-error and formatted
// logging call sites. Board-specific wiring (which UART, which LED pin)
// is out of scope per spec.md §1 and lives behind the Sink interface so
// that every other package can report a fatal condition without knowing
// whether it's running on-device or on a development host.
package diag

// Sink receives diagnostic text and is told about fatal conditions. The
// AVR build's Sink writes to the diagnostic UART with an allocation-free
// formatter (see WriteUint32) and blinks the status LED forever on
// Fatal; the host build's Sink wraps the standard log package.
type Sink interface {
	Printf(format string, args ...any)
	// Fatal reports an unrecoverable condition and never returns.
	Fatal(msg string)
}

var sink Sink = nopSink{}

// SetSink installs the diagnostic sink. Called once from bring-up.
func SetSink(s Sink) {
	sink = s
}

// Printf reports a non-fatal diagnostic.
func Printf(format string, args ...any) {
	sink.Printf(format, args...)
}

// Fatal reports a capacity-exhaustion or required-peripheral failure
// (spec.md §7: allocator/executor/timed-waker overflow, I²C bus errors)
// and never returns.
func Fatal(msg string) {
	sink.Fatal(msg)
	// Unreachable on a correct Sink; guards against a Sink bug leaving
	// the caller running in an undefined state.
	for {
	}
}

type nopSink struct{}

func (nopSink) Printf(string, ...any) {}
func (nopSink) Fatal(msg string)      { panic(msg) }

// WriteUint32 renders v as zero-padded decimal into a fixed 10-byte
// buffer and returns the filled slice, without allocating. Mirrors the
// original firmware's uwrite! zero-padding loop
// (avr_async/executor.rs), needed because there is no heap for fmt on
// the AVR build.
func WriteUint32(buf *[10]byte, v uint32) []byte {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return buf[:]
}
