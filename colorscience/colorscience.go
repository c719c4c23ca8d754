// Package colorscience is the CPU-side reference implementation of the
// color operators the shading kernel runs on the GPU: the sRGB transfer
// functions, the fixed eight-band HSL panel, and the AgX filmic gamut
// rotation. It exists so tests can compute an expected pixel value the way
// spec.md §8 describes, independent of the WGSL kernel, and compare the
// dispatched result against it within tolerance.
package colorscience

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"

	"github.com/gogpu/rawshade/adjustments"
	"github.com/gogpu/rawshade/internal/color"
)

// SRGBToLinear and LinearToSRGB re-export the transfer functions the
// dispatcher's textures are defined in terms of, so callers outside
// internal/color don't need an internal import just to build a reference
// pixel.
func SRGBToLinear(s float32) float32 { return color.SRGBToLinear(s) }
func LinearToSRGB(l float32) float32 { return color.LinearToSRGB(l) }

// HSLBandCenters holds the hue center, in degrees, of each of the eight
// fixed HSL panel bands, in the order adjustments.Global.HSL expects:
// red, orange, yellow, green, aqua, blue, purple, magenta.
var HSLBandCenters = [adjustments.HSLBandCount]float64{
	358, 25, 60, 115, 180, 225, 280, 330,
}

// HSLBandWidths holds the Gaussian falloff width, in degrees, of each band,
// matching the kernel's apply_hsl_panel widths array exactly: bands like
// green and aqua that see more real-world hue drift get a wider influence
// than the tightly clustered red/yellow bands.
var HSLBandWidths = [adjustments.HSLBandCount]float64{
	35, 45, 40, 90, 60, 60, 55, 50,
}

// HSLBandWeight returns how strongly a pixel of the given hue (degrees,
// [0,360)) falls under band i: a Gaussian centered on the band's hue with
// the band's own width, wrapped across the 0/360 seam, matching
// hsl_band_weight exactly.
func HSLBandWeight(i int, hueDegrees float64) float64 {
	center := HSLBandCenters[i]
	width := HSLBandWidths[i]
	d := math.Abs(hueDegrees - center)
	d = math.Min(d, 360-d)
	return math.Exp(-(d * d) / (2 * width * width))
}

// ApplyHSL rotates and rescales a linear color through the HSV-space
// H/S/L offsets an HSL band bundle contributes, weighting each band's
// contribution by HSLBandWeight so bands overlap smoothly rather than
// producing hard edges between hue ranges. Matches apply_hsl_panel exactly:
// the rotation runs in rgb_to_hsv/hsv_to_rgb space rather than HSL, hue and
// saturation shifts are gated by a saturation mask so a near-gray pixel
// resists hue steering, and the luminance shift is applied by rescaling the
// rotated color to a target BT.709 luma rather than adjusting HSV value
// directly.
func ApplyHSL(rgb color.ColorF32, bands [adjustments.HSLBandCount]adjustments.HSLBand) color.ColorF32 {
	c := colorful.Color{R: float64(rgb.R), G: float64(rgb.G), B: float64(rgb.B)}
	h, s, v := c.Hsv()
	satMask := smoothstep(0, 0.15, s)

	var hueShift, satShift, lumShift, weight float64
	for i, b := range bands {
		w := HSLBandWeight(i, h)
		hueShift += w * float64(b.Hue) * 40 // +-1 maps to a +-40 degree hue shift
		satShift += w * float64(b.Sat)
		lumShift += w * float64(b.Luminance)
		weight += w
	}
	const eps = 1e-6
	if weight > eps {
		hueShift /= weight
		satShift /= weight
		lumShift /= weight
	}

	h = math.Mod(h+hueShift*satMask+360, 360)
	s = clamp01(s * (1 + satShift*satMask))

	out := colorful.Hsv(h, s, v)
	result := color.ColorF32{R: float32(out.R), G: float32(out.G), B: float32(out.B), A: rgb.A}

	if math.Abs(lumShift) > eps {
		curLuma := math.Max(luma709(result), eps)
		targetLuma := clampFloat(luma709(result)+lumShift*0.3, 0, 4)
		scale := targetLuma / curLuma
		result = color.ColorF32{R: result.R * float32(scale), G: result.G * float32(scale), B: result.B * float32(scale), A: rgb.A}
	}
	return result
}

// luma709 computes BT.709 luma from a linear-domain RGB triple, matching the
// kernel's luma() helper used to rescale the HSL panel's luminance shift.
func luma709(c color.ColorF32) float64 {
	return 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
}

// ApplyContrast runs the tonal panel's contrast operator on a linear pixel:
// a gamma-warped S-curve pivoted at mid-gray with a soft shoulder above
// 1.0, matching apply_tonal's contrast branch exactly so a golden-value
// test can assert on it without dispatching the kernel.
func ApplyContrast(rgb color.ColorF32, contrast float32) color.ColorF32 {
	if contrast == 0 {
		return rgb
	}
	strength := math.Exp2(1.25 * float64(contrast))
	const pivot = 0.5
	warp := func(c float32) float32 {
		base := float64(c) / pivot
		if base < 0 {
			base = 0
		}
		warped := math.Pow(base, strength) * pivot
		shoulder := smoothstep(1.0, 1.6, warped)
		return float32(warped*(1-shoulder) + float64(c)*shoulder)
	}
	return color.ColorF32{R: warp(rgb.R), G: warp(rgb.G), B: warp(rgb.B), A: rgb.A}
}

// ApplyVignette darkens or lightens a linear pixel by its distance from the
// image center, matching apply_vignette exactly: a superellipse falloff
// (roundness 0 gives a circle, roundness 1 a diamond) feathered by a
// smoothstep around midpoint.
func ApplyVignette(rgb color.ColorF32, x, y, width, height, amount, midpoint, roundness, feather float32) color.ColorF32 {
	if amount == 0 {
		return rgb
	}
	cx, cy := width*0.5, height*0.5
	aspect := width / maxF32(height, 1)
	dx := (x - cx) / maxF32(height, 1) * 2
	dy := (y - cy) / maxF32(height, 1) * 2
	dx = dx / maxF32(aspect, 1e-5) * aspect

	power := float64(1)*float64(roundness) + float64(2)*(1-float64(roundness))
	dist := math.Pow(math.Abs(float64(dx)), power) + math.Pow(math.Abs(float64(dy)), power)
	if dist < 0 {
		dist = 0
	}
	radial := math.Pow(dist, 1/power)

	f := maxF32(feather, 0.02)
	w := smoothstep(float64(midpoint)-float64(f), float64(midpoint)+float64(f), radial)

	scale := func(c float32) float32 {
		if amount < 0 {
			return c * float32(1-w*float64(-amount))
		}
		return float32(float64(c)*(1-w*float64(amount)) + w*float64(amount))
	}
	return color.ColorF32{R: scale(rgb.R), G: scale(rgb.G), B: scale(rgb.B), A: rgb.A}
}

// smoothstep mirrors WGSL's smoothstep: a Hermite interpolation that is 0
// below edge0, 1 above edge1, and clamped in between.
func smoothstep(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clampFloat((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SampleInputLike decodes a texel sampled from a blur buffer the same way
// the kernel's sample_input_like does: raw buffers (built from a non-RAW
// input) are stored sRGB-encoded like the input texture itself, so they
// need the same eotf decode the main pixel path applies before any
// pixel-to-blur comparison in linear space is valid.
func SampleInputLike(raw color.ColorF32, isRaw bool) color.ColorF32 {
	if isRaw {
		return raw
	}
	return color.ColorF32{
		R: color.SRGBToLinear(raw.R),
		G: color.SRGBToLinear(raw.G),
		B: color.SRGBToLinear(raw.B),
		A: raw.A,
	}
}

// protectionMask matches protection_mask: a smooth mask that fades local
// contrast out of the deep shadows and the highlight rolloff.
func protectionMask(l, tS float64) float64 {
	return smoothstep(0, tS, l) * (1 - smoothstep(0.9, 1.0, l))
}

// LocalContrast matches local_contrast exactly: it lifts or flattens
// mid-frequency detail by comparing a pixel's luma against a blurred
// version of itself in log space. blur must already be in the same color
// space as pixel (decode it with SampleInputLike first for a non-RAW
// buffer) or the log-ratio this computes is meaningless.
func LocalContrast(pixel, blur color.ColorF32, amount, tS float32, edgeDamp bool) color.ColorF32 {
	if math.Abs(float64(amount)) < 1e-6 {
		return pixel
	}

	l := math.Max(luma709(pixel), 1e-6)
	lb := math.Max(luma709(blur), 1e-6)
	mask := protectionMask(l, float64(tS))

	var result color.ColorF32
	if amount > 0 {
		ampEff := float64(amount)
		if edgeDamp {
			edge := math.Abs(l - lb)
			ampEff = float64(amount) * (1 - clampFloat(edge*4, 0, 0.6))
		}
		logRatio := math.Log2(l / lb)
		scale := math.Exp2(logRatio * ampEff)
		result = color.ColorF32{R: pixel.R * float32(scale), G: pixel.G * float32(scale), B: pixel.B * float32(scale), A: pixel.A}
	} else {
		strength := math.Abs(float64(amount))
		if edgeDamp {
			strength *= 0.5
		}
		ratio := l / math.Max(lb, 1e-6)
		blurProjected := color.ColorF32{R: blur.R * float32(ratio), G: blur.G * float32(ratio), B: blur.B * float32(ratio), A: pixel.A}
		result = color.ColorF32{
			R: float32(float64(pixel.R) + (float64(blurProjected.R)-float64(pixel.R))*strength),
			G: float32(float64(pixel.G) + (float64(blurProjected.G)-float64(pixel.G))*strength),
			B: float32(float64(pixel.B) + (float64(blurProjected.B)-float64(pixel.B))*strength),
			A: pixel.A,
		}
	}

	return color.ColorF32{
		R: float32(float64(pixel.R) + (float64(result.R)-float64(pixel.R))*mask),
		G: float32(float64(pixel.G) + (float64(result.G)-float64(pixel.G))*mask),
		B: float32(float64(pixel.B) + (float64(result.B)-float64(pixel.B))*mask),
		A: pixel.A,
	}
}

// AgXTransform builds the 3x3 rendering-space rotation matrix a
// adjustments.AgXMatrices pair describes, as a gonum Dense so callers can
// compose it with other linear operators (white balance, calibration) the
// way a full color pipeline would before collapsing back to a fixed array
// for upload.
func AgXTransform(m adjustments.AgXMatrices) *mat.Dense {
	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[i*3+j] = float64(m.Forward[i][j])
		}
	}
	return mat.NewDense(3, 3, data)
}

// ApplyMatrix3 applies a 3x3 gonum matrix to an RGB triple, used to run the
// AgX rotation (or its inverse) on a reference pixel during a golden-value
// test.
func ApplyMatrix3(m *mat.Dense, rgb [3]float64) [3]float64 {
	in := mat.NewVecDense(3, rgb[:])
	var out mat.VecDense
	out.MulVec(m, in)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}
