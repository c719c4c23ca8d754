// Package histogram builds per-channel luminance/RGB histograms from a
// dispatched tile's output pixels, the way a host UI would drive a live
// histogram readout while editing. It has no bearing on the shading kernel
// itself; it is a read-only view over the pipeline's output.
package histogram

import (
	"github.com/skypies/util/histogram"

	"github.com/gogpu/rawshade/internal/color"
)

// numBuckets matches the 8-bit display range the output storage texture is
// encoded at (spec.md §4.2: kernel writes rgba8unorm after tone-mapping).
const numBuckets = 256

// Readback holds one histogram.Histogram per channel: red, green, blue, and
// luminance, plus a linear-light luminance histogram for exposure metering
// against the pre-tone-mapped scene values instead of the display-referred
// ones the other four buckets track.
type Readback struct {
	Red, Green, Blue, Luma histogram.Histogram
	LinearLuma             histogram.Histogram
}

// NewReadback allocates an empty Readback over the full 8-bit range.
func NewReadback() *Readback {
	newHist := func() histogram.Histogram {
		return histogram.Histogram{NumBuckets: numBuckets, ValMin: 0, ValMax: numBuckets}
	}
	return &Readback{Red: newHist(), Green: newHist(), Blue: newHist(), Luma: newHist(), LinearLuma: newHist()}
}

// Add records one output pixel's 8-bit channel values.
func (r *Readback) Add(red, green, blue uint8) {
	r.Red.Add(histogram.ScalarVal(red))
	r.Green.Add(histogram.ScalarVal(green))
	r.Blue.Add(histogram.ScalarVal(blue))
	r.Luma.Add(histogram.ScalarVal(lumaU8(red, green, blue)))

	// The output texture is sRGB-encoded (spec.md §4.2 step 10 onward);
	// decode each channel back to linear light with the LUT-based fast path
	// before computing luma, so LinearLuma reads scene-referred brightness
	// instead of the display-referred curve the other histograms track.
	lr := color.SRGBToLinearFast(red)
	lg := color.SRGBToLinearFast(green)
	lb := color.SRGBToLinearFast(blue)
	linearLuma := 0.2126*lr + 0.7152*lg + 0.0722*lb
	r.LinearLuma.Add(histogram.ScalarVal(linearLuma * numBuckets))
}

// AddPixels records every pixel in a tightly packed RGBA8 buffer, skipping
// the alpha channel.
func (r *Readback) AddPixels(rgba []byte) {
	for i := 0; i+3 < len(rgba); i += 4 {
		r.Add(rgba[i], rgba[i+1], rgba[i+2])
	}
}

// lumaU8 computes ITU-R BT.709 luma from 8-bit sRGB-encoded channels,
// rounded to the nearest integer, using the same weights as the shading
// kernel's luma() helper.
func lumaU8(red, green, blue uint8) uint8 {
	v := 0.2126*float64(red) + 0.7152*float64(green) + 0.0722*float64(blue)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
