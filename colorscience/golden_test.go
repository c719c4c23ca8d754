package colorscience

import (
	"math"
	"testing"

	"github.com/gogpu/rawshade/adjustments"
	"github.com/gogpu/rawshade/internal/color"
)

// These mirror the six end-to-end scenarios: a 64x64 tile of constant
// linear gray 0.5 (or the literal input each scenario names), is_raw=0, no
// masks, run through the CPU reference operators in colorscience.go instead
// of the dispatched kernel.

func TestGoldenIdentity(t *testing.T) {
	// All zeros, identity curves, no LUT, filmic off: output within 2/255
	// of the sRGB encoding of the constant input.
	out := LinearToSRGB(0.5)
	want := float32(188.0 / 255.0)
	if !floatNear(float64(out), float64(want), 2.0/255.0) {
		t.Errorf("identity encode of 0.5 = %v, want within 2/255 of %v", out, want)
	}
}

func TestGoldenExposurePlusOneEV(t *testing.T) {
	// exposure=1.0 doubles the linear pixel before encode; the constant
	// 0.5 tile clips to white within dither noise.
	exposed := float32(0.5) * exp2f(1.0)
	out := LinearToSRGB(clamp1(exposed))
	const wantMin = 253.0 / 255.0
	if float64(out) < wantMin {
		t.Errorf("exposure +1EV encode = %v, want >= %v", out, wantMin)
	}
}

func TestGoldenContrastHalfStop(t *testing.T) {
	// contrast=0.5: pixels below mid-gray darken, above lighten, and the
	// constant mid-gray tile itself stays within 2/255 of its own encode
	// since the S-curve pivots exactly at 0.5.
	below := color.ColorF32{R: 0.3, G: 0.3, B: 0.3, A: 1}
	above := color.ColorF32{R: 0.7, G: 0.7, B: 0.7, A: 1}
	mid := color.ColorF32{R: 0.5, G: 0.5, B: 0.5, A: 1}

	gotBelow := ApplyContrast(below, 0.5)
	gotAbove := ApplyContrast(above, 0.5)
	gotMid := ApplyContrast(mid, 0.5)

	if gotBelow.R >= below.R {
		t.Errorf("contrast +0.5 should darken a below-pivot pixel: in=%v out=%v", below.R, gotBelow.R)
	}
	if gotAbove.R <= above.R {
		t.Errorf("contrast +0.5 should lighten an above-pivot pixel: in=%v out=%v", above.R, gotAbove.R)
	}
	if !floatNear(float64(LinearToSRGB(gotMid.R)), float64(LinearToSRGB(mid.R)), 2.0/255.0) {
		t.Errorf("contrast +0.5 at the pivot moved the encoded value: got %v, want within 2/255 of %v",
			LinearToSRGB(gotMid.R), LinearToSRGB(mid.R))
	}
}

func TestGoldenHSLRedLuminance(t *testing.T) {
	// HSL red luminance -1 on a constant red linear input: the output
	// red channel encodes from a luma strictly less than the input's.
	var bands [adjustments.HSLBandCount]adjustments.HSLBand
	bands[0] = adjustments.HSLBand{Luminance: -1}

	red := color.ColorF32{R: 0.8, G: 0.05, B: 0.05, A: 1}
	out := ApplyHSL(red, bands)

	inLuma := 0.2126*red.R + 0.7152*red.G + 0.0722*red.B
	outLuma := 0.2126*out.R + 0.7152*out.G + 0.0722*out.B
	if outLuma >= inLuma {
		t.Errorf("HSL red luminance=-1 on a red pixel should reduce luma: in=%v out=%v", inLuma, outLuma)
	}
}

func TestGoldenVignette(t *testing.T) {
	// amount=-1, midpoint=0.3, feather=0.3, roundness=0 on a constant white
	// input: corners darken to near-zero, the center stays near white.
	const w, h = 64.0, 64.0
	white := color.ColorF32{R: 1, G: 1, B: 1, A: 1}

	corner := ApplyVignette(white, 0, 0, w, h, -1, 0.3, 0, 0.3)
	center := ApplyVignette(white, w/2, h/2, w, h, -1, 0.3, 0, 0.3)

	if corner.R > 0.05 {
		t.Errorf("vignette corner = %v, want near 0", corner.R)
	}
	if LinearToSRGB(center.R) < 253.0/255.0 {
		t.Errorf("vignette center encode = %v, want near sRGB(1.0)", LinearToSRGB(center.R))
	}
}

func TestGoldenMaskedExposure(t *testing.T) {
	// A single mask covering the bottom half at influence 1.0 with
	// exposure=+1 on a constant linear 0.25 input: the top half stays at
	// 0.25, the bottom half is boosted to 0.5, transition exactly at the
	// mask boundary (mix(composite, masked, w) with w the mask influence).
	const base = 0.25
	maskedExposure := base * exp2f(1.0)

	topWeight := float32(0.0)
	bottomWeight := float32(1.0)

	top := mixf(base, maskedExposure, topWeight)
	bottom := mixf(base, maskedExposure, bottomWeight)

	wantTop := float32(0.25)
	wantBottom := float32(0.5)
	if !floatNear(float64(top), float64(wantTop), 1e-6) {
		t.Errorf("top half (mask weight 0) = %v, want %v", top, wantTop)
	}
	if !floatNear(float64(bottom), float64(wantBottom), 1e-6) {
		t.Errorf("bottom half (mask weight 1) = %v, want %v", bottom, wantBottom)
	}

	topEncoded := LinearToSRGB(top)
	bottomEncoded := LinearToSRGB(bottom)
	wantTopEncoded := float32(137.0 / 255.0)
	wantBottomEncoded := float32(188.0 / 255.0)
	if !floatNear(float64(topEncoded), float64(wantTopEncoded), 2.0/255.0) {
		t.Errorf("top half encode = %v, want ~%v (137/255)", topEncoded, wantTopEncoded)
	}
	if !floatNear(float64(bottomEncoded), float64(wantBottomEncoded), 2.0/255.0) {
		t.Errorf("bottom half encode = %v, want ~%v (188/255)", bottomEncoded, wantBottomEncoded)
	}
}

func TestGoldenSharpnessOnNonRAWDecodesBlurBeforeCompare(t *testing.T) {
	// is_raw=0, sharpness amount=1.0: the blur buffer for a non-RAW input is
	// stored sRGB-encoded (spec.md §3), so sample_input_like must decode it
	// with the eotf before local_contrast compares it against the linear
	// pixel. A pixel of linear 0.5 next to a blur texel that reads back as
	// raw sRGB-encoded 0.5 (i.e. linear ~0.214 once decoded) should brighten
	// under a positive amount, since the pixel's own luma is above the
	// decoded blur luma and log2(pixel/blur) is positive. Comparing against
	// the raw undecoded blur value instead gives a log-ratio of zero.
	pixel := color.ColorF32{R: 0.5, G: 0.5, B: 0.5, A: 1}
	rawBlurTexel := color.ColorF32{R: 0.5, G: 0.5, B: 0.5, A: 1} // as stored, still sRGB-encoded

	decodedBlur := SampleInputLike(rawBlurTexel, false)
	if !(decodedBlur.R < pixel.R) {
		t.Fatalf("decoded blur %v should read darker than the linear pixel %v", decodedBlur.R, pixel.R)
	}

	out := LocalContrast(pixel, decodedBlur, 1.0, 0.5, false)
	if out.R <= pixel.R {
		t.Errorf("local contrast with correctly decoded blur should brighten pixel %v, got %v", pixel.R, out.R)
	}

	// The bug this guards against: skipping the decode and feeding the raw
	// sRGB-encoded texel straight into local_contrast makes blur read equal
	// to the pixel, producing a log-ratio of zero and a no-op instead.
	noOp := LocalContrast(pixel, rawBlurTexel, 1.0, 0.5, false)
	if !floatNear(float64(noOp.R), float64(pixel.R), 1e-6) {
		t.Fatalf("sanity check: undecoded blur should reproduce the no-op bug, got %v", noOp.R)
	}
	if floatNear(float64(out.R), float64(noOp.R), 1e-4) {
		t.Errorf("decoded and undecoded blur paths should diverge, both gave %v", out.R)
	}
}

func exp2f(x float32) float32 { return float32(math.Exp2(float64(x))) }

func clamp1(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func mixf(a, b, t float32) float32 { return a + (b-a)*t }
