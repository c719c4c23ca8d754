package histogram

import "testing"

func TestNewReadbackBucketRanges(t *testing.T) {
	r := NewReadback()

	for name, h := range map[string]struct{ NumBuckets, ValMin, ValMax int }{
		"red":   {r.Red.NumBuckets, r.Red.ValMin, r.Red.ValMax},
		"green": {r.Green.NumBuckets, r.Green.ValMin, r.Green.ValMax},
		"blue":  {r.Blue.NumBuckets, r.Blue.ValMin, r.Blue.ValMax},
		"luma":  {r.Luma.NumBuckets, r.Luma.ValMin, r.Luma.ValMax},
	} {
		if h.NumBuckets != numBuckets {
			t.Errorf("%s.NumBuckets = %d, want %d", name, h.NumBuckets, numBuckets)
		}
		if h.ValMin != 0 || h.ValMax != numBuckets {
			t.Errorf("%s range = [%d,%d), want [0,%d)", name, h.ValMin, h.ValMax, numBuckets)
		}
	}
}

func TestAddDoesNotPanic(t *testing.T) {
	r := NewReadback()
	r.Add(255, 0, 0)
	r.Add(0, 255, 0)
	r.Add(0, 0, 255)
}

func TestAddPixelsDoesNotPanic(t *testing.T) {
	r := NewReadback()
	r.AddPixels([]byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255})
}

func TestAddPixelsIgnoresTrailingPartialPixel(t *testing.T) {
	r := NewReadback()
	// A trailing 2-byte fragment (not a full RGBA pixel) must not panic.
	r.AddPixels([]byte{255, 0, 0, 255, 10, 20})
}

func TestLinearLumaHistogramRange(t *testing.T) {
	r := NewReadback()
	r.Add(188, 188, 188) // sRGB(0.5), see colorscience's identity golden test

	if r.LinearLuma.NumBuckets != numBuckets || r.LinearLuma.ValMin != 0 || r.LinearLuma.ValMax != numBuckets {
		t.Fatalf("LinearLuma range = [%d,%d)/%d, want [0,%d)/%d",
			r.LinearLuma.ValMin, r.LinearLuma.ValMax, r.LinearLuma.NumBuckets, numBuckets, numBuckets)
	}
}

func TestLumaWeightsGreenMost(t *testing.T) {
	if got := lumaU8(0, 255, 0); got < 180 {
		t.Errorf("pure green luma = %d, want a high value (green dominates luma weight)", got)
	}
	if got := lumaU8(0, 0, 255); got > 100 {
		t.Errorf("pure blue luma = %d, want a low value (blue contributes least to luma)", got)
	}
	if got := lumaU8(0, 0, 0); got != 0 {
		t.Errorf("black luma = %d, want 0", got)
	}
	if got := lumaU8(255, 255, 255); got != 255 {
		t.Errorf("white luma = %d, want 255", got)
	}
}
