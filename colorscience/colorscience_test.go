package colorscience

import (
	"math"
	"testing"

	"github.com/gogpu/rawshade/adjustments"
	"github.com/gogpu/rawshade/internal/color"
)

func floatNear(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSRGBLinearRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.04045, 0.18, 0.5, 1} {
		got := LinearToSRGB(SRGBToLinear(v))
		if !floatNear(float64(got), float64(v), 1e-4) {
			t.Errorf("round trip %v -> %v, want ~%v", v, got, v)
		}
	}
}

func TestHSLBandWeightAtCenterIsOne(t *testing.T) {
	for i, center := range HSLBandCenters {
		if got := HSLBandWeight(i, center); !floatNear(got, 1, 1e-9) {
			t.Errorf("band %d weight at its own center = %v, want 1", i, got)
		}
	}
}

func TestHSLBandWeightFallsOffNearZero(t *testing.T) {
	// Red (index 0, center 358, width 35) should have negligible influence
	// at aqua's center (180 degrees), the opposite side of the wheel.
	if got := HSLBandWeight(0, 180); got > 1e-4 {
		t.Errorf("red band weight at aqua's center = %v, want ~0", got)
	}
}

func TestHSLBandWeightWrapsAcrossZero(t *testing.T) {
	// Red is centered at 358 degrees; a hue of 2 degrees is 4 degrees away
	// once wrapped across the 0/360 seam, well inside the band's width.
	w := HSLBandWeight(0, 2)
	width := HSLBandWidths[0]
	want := math.Exp(-(4.0 * 4.0) / (2 * width * width))
	if !floatNear(w, want, 1e-9) {
		t.Errorf("wrapped weight = %v, want %v", w, want)
	}
}

func TestApplyHSLNoOffsetIsIdentity(t *testing.T) {
	var bands [adjustments.HSLBandCount]adjustments.HSLBand
	rgb := color.ColorF32{R: 0.8, G: 0.2, B: 0.2, A: 1}

	out := ApplyHSL(rgb, bands)
	if !floatNear(float64(out.R), float64(rgb.R), 1e-3) ||
		!floatNear(float64(out.G), float64(rgb.G), 1e-3) ||
		!floatNear(float64(out.B), float64(rgb.B), 1e-3) {
		t.Errorf("zero-offset ApplyHSL changed color: got %+v, want ~%+v", out, rgb)
	}
}

func TestApplyHSLReducesLuminanceOnRedBand(t *testing.T) {
	var bands [adjustments.HSLBandCount]adjustments.HSLBand
	bands[0] = adjustments.HSLBand{Luminance: -1} // red band, full darken

	red := color.ColorF32{R: 0.9, G: 0.1, B: 0.1, A: 1}
	out := ApplyHSL(red, bands)

	outLuma := 0.2126*out.R + 0.7152*out.G + 0.0722*out.B
	inLuma := 0.2126*red.R + 0.7152*red.G + 0.0722*red.B
	if outLuma >= inLuma {
		t.Errorf("expected red band luminance=-1 to darken a red pixel: in=%v out=%v", inLuma, outLuma)
	}
}

func TestAgXTransformIdentityIsNoOp(t *testing.T) {
	m := AgXTransform(adjustments.DefaultAgXMatrices())
	rgb := [3]float64{0.2, 0.5, 0.8}

	out := ApplyMatrix3(m, rgb)
	for i := range rgb {
		if !floatNear(out[i], rgb[i], 1e-9) {
			t.Errorf("identity AgX transform changed channel %d: got %v, want %v", i, out[i], rgb[i])
		}
	}
}
