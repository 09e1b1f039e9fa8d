package capture

import (
	"math"
	"testing"
)

func TestDecodeIQ(t *testing.T) {
	// Two samples: (255,127.5-ish) and (0,255).
	raw := []byte{255, 128, 0, 255}

	samples, err := DecodeIQ(raw)
	if err != nil {
		t.Fatalf("DecodeIQ() error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}

	if got := real(samples[0]); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("real(samples[0]) = %g, want 1.0", got)
	}
	if got := imag(samples[0]); math.Abs(got-0.5/127.5) > 1e-9 {
		t.Errorf("imag(samples[0]) = %g", got)
	}
	if got := real(samples[1]); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("real(samples[1]) = %g, want -1.0", got)
	}
}

func TestDecodeIQ_OddTrailingByte(t *testing.T) {
	samples, err := DecodeIQ([]byte{128, 128, 200})
	if err != nil {
		t.Fatalf("DecodeIQ() error: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("got %d samples, want 1 (trailing byte dropped)", len(samples))
	}
}

func TestDecodeIQ_Empty(t *testing.T) {
	if _, err := DecodeIQ(nil); err != ErrNoSamples {
		t.Errorf("DecodeIQ(nil) error = %v, want ErrNoSamples", err)
	}
	if _, err := DecodeIQ([]byte{128}); err != ErrNoSamples {
		t.Errorf("DecodeIQ(1 byte) error = %v, want ErrNoSamples", err)
	}
}

func TestSignalStrength(t *testing.T) {
	if got := SignalStrength(nil); got != -100.0 {
		t.Errorf("SignalStrength(nil) = %g, want -100", got)
	}

	// Unit-power samples: 10*log10(1) - 30 = -30 dBm.
	unit := []complex128{1, 1i, -1, -1i}
	if got := SignalStrength(unit); math.Abs(got+30) > 1e-9 {
		t.Errorf("SignalStrength(unit) = %g, want -30", got)
	}

	// Weaker signal reads lower.
	weak := []complex128{0.1, 0.1i}
	if SignalStrength(weak) >= SignalStrength(unit) {
		t.Error("weaker samples should read lower power")
	}

	// Zero samples hit the floor.
	if got := SignalStrength([]complex128{0, 0}); got != -100.0 {
		t.Errorf("SignalStrength(zeros) = %g, want -100", got)
	}
}
