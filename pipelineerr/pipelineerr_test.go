package pipelineerr

import (
	"errors"
	"testing"
)

func TestMissingResourceUnwraps(t *testing.T) {
	err := MissingResource("lut")
	if !errors.Is(err, ErrMissingResource) {
		t.Errorf("MissingResource(%q) does not wrap ErrMissingResource", "lut")
	}
	var mre *MissingResourceError
	if !errors.As(err, &mre) {
		t.Fatalf("MissingResource(%q) does not unwrap to *MissingResourceError", "lut")
	}
	if mre.Resource != "lut" {
		t.Errorf("Resource = %q, want %q", mre.Resource, "lut")
	}
}

func TestDimensionMismatchUnwraps(t *testing.T) {
	err := DimensionMismatch("mask[2]", 100, 200, 512, 512)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("DimensionMismatch does not wrap ErrDimensionMismatch")
	}
	var dme *DimensionMismatchError
	if !errors.As(err, &dme) {
		t.Fatalf("DimensionMismatch does not unwrap to *DimensionMismatchError")
	}
	if dme.Width != 100 || dme.Height != 200 || dme.WantWidth != 512 || dme.WantHeight != 512 {
		t.Errorf("unexpected fields: %+v", dme)
	}
}

func TestInvalidCurveUnwraps(t *testing.T) {
	err := InvalidCurve("red", "x values not monotonic")
	if !errors.Is(err, ErrInvalidCurve) {
		t.Errorf("InvalidCurve does not wrap ErrInvalidCurve")
	}
	var ice *InvalidCurveError
	if !errors.As(err, &ice) {
		t.Fatalf("InvalidCurve does not unwrap to *InvalidCurveError")
	}
	if ice.Curve != "red" {
		t.Errorf("Curve = %q, want %q", ice.Curve, "red")
	}
}

func TestDeviceLostAndTimeoutWrapCause(t *testing.T) {
	cause := errors.New("adapter reset")

	dl := DeviceLost(cause)
	if !errors.Is(dl, ErrDeviceLost) || !errors.Is(dl, cause) {
		t.Errorf("DeviceLost(cause) does not wrap both the sentinel and the cause")
	}

	to := Timeout(cause)
	if !errors.Is(to, ErrTimeout) || !errors.Is(to, cause) {
		t.Errorf("Timeout(cause) does not wrap both the sentinel and the cause")
	}

	if got := DeviceLost(nil); got != ErrDeviceLost {
		t.Errorf("DeviceLost(nil) = %v, want ErrDeviceLost", got)
	}
	if got := Timeout(nil); got != ErrTimeout {
		t.Errorf("Timeout(nil) = %v, want ErrTimeout", got)
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"device lost", DeviceLost(nil), true},
		{"timeout", Timeout(nil), true},
		{"missing resource", MissingResource("lut"), false},
		{"dimension mismatch", DimensionMismatch("mask[0]", 1, 1, 2, 2), false},
		{"invalid curve", InvalidCurve("luma", "too few points"), false},
		{"nil", nil, false},
		{"unrelated error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.err); got != tt.want {
				t.Errorf("Recoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
