// Package adjustments holds the host-side representation of the parameter
// bundle the dispatcher uploads to the shading pipeline: the global
// adjustment record, up to eight per-mask records, and the tone curves,
// grading zones, calibration, and HSL bands each record carries. Validate
// checks the invariants spec'd for these types before a Uniform is handed
// to the dispatcher; GPU packs a validated Uniform into the byte layout the
// compute kernel expects.
package adjustments

import (
	"fmt"

	"github.com/gogpu/rawshade/gpucore"
	"github.com/gogpu/rawshade/pipelineerr"
)

// MaxMasks is the maximum number of simultaneous per-mask adjustment stacks.
const MaxMasks = gpucore.MaxMasks

// MaxCurvePoints is the maximum number of control points a tone curve holds.
const MaxCurvePoints = gpucore.CurvePointCount

// HSLBandCount is the number of fixed hue bands in the HSL panel.
const HSLBandCount = gpucore.HSLBandCount

// TonemapperMode selects the tone-mapping operator applied after the
// masked adjustment stack and before curves.
type TonemapperMode uint32

const (
	// TonemapperNone leaves highlight/shadow compression to the tonal
	// operators alone (legacy behavior).
	TonemapperNone TonemapperMode = iota
	// TonemapperFilmic applies the AgX filmic tone-mapping operator.
	TonemapperFilmic
)

// CurvePoint is a single (x, y) control point of a tone curve, both axes
// in [0,255].
type CurvePoint struct {
	X, Y float32
}

// Curve is one of the four tone curves (luma, red, green, blue). An empty
// Curve (Points == nil) is treated as the identity curve.
type Curve struct {
	Points []CurvePoint
}

// IdentityCurve returns the canonical two-point identity curve.
func IdentityCurve() Curve {
	return Curve{Points: []CurvePoint{{X: 0, Y: 0}, {X: 255, Y: 255}}}
}

// validate checks the curve invariants from spec.md §3: point count in
// {2..16}, strictly ascending x, endpoints pinned to 0 and 255.
func (c Curve) validate(name string) error {
	if len(c.Points) == 0 {
		return nil // absent curve, treated as identity by GPU()
	}
	if len(c.Points) < 2 || len(c.Points) > MaxCurvePoints {
		return pipelineerr.InvalidCurve(name, fmt.Sprintf("point count %d outside {2..%d}", len(c.Points), MaxCurvePoints))
	}
	if c.Points[0].X != 0 {
		return pipelineerr.InvalidCurve(name, "first point x must be 0")
	}
	if c.Points[len(c.Points)-1].X != 255 {
		return pipelineerr.InvalidCurve(name, "last point x must be 255")
	}
	for i := 1; i < len(c.Points); i++ {
		if !(c.Points[i].X > c.Points[i-1].X) {
			return pipelineerr.InvalidCurve(name, "points must be strictly ascending by x")
		}
	}
	return nil
}

func (c Curve) gpu() gpucore.CurveGPU {
	var out gpucore.CurveGPU
	pts := c.Points
	if len(pts) == 0 {
		pts = IdentityCurve().Points
	}
	for i, p := range pts {
		out.Points[i] = gpucore.CurvePoint{X: p.X, Y: p.Y}
	}
	out.Count = uint32(len(pts)) //nolint:gosec // G115: len(pts) <= MaxCurvePoints, validated above
	return out
}

// GradingZone holds the hue/saturation/luminance offset for one of the
// three color-grading zones (shadows, midtones, highlights).
type GradingZone struct {
	Hue       float32 // [0,360)
	Sat       float32 // [0,1]
	Luminance float32 // [-1,1]
}

func (z GradingZone) gpu() gpucore.GradingZoneGPU {
	return gpucore.GradingZoneGPU{Hue: z.Hue, Sat: z.Sat, Luminance: z.Luminance}
}

// PrimaryCalibration holds the hue/saturation adjustment for one RGB
// primary in the color calibration panel.
type PrimaryCalibration struct {
	Hue float32 // [-1,1]
	Sat float32 // [-1,1]
}

func (p PrimaryCalibration) gpu() gpucore.PrimaryCalibrationGPU {
	return gpucore.PrimaryCalibrationGPU{Hue: p.Hue, Sat: p.Sat}
}

// Calibration holds the color-calibration panel: a shadow tint and a
// hue/saturation rotation for each RGB primary.
type Calibration struct {
	ShadowTint float32 // [-1,1]
	Red        PrimaryCalibration
	Green      PrimaryCalibration
	Blue       PrimaryCalibration
}

// Grading holds the three color-grading zones plus their blend controls.
type Grading struct {
	Shadows   GradingZone
	Midtones  GradingZone
	Highlands GradingZone // the highlights zone; read it through Highlights()
	Blending  float32     // [0,1]
	Balance   float32     // [-1,1]
}

// Highlights returns the highlights zone, which is stored in the Highlands
// field.
func (g Grading) Highlights() GradingZone { return g.Highlands }

// HSLBand holds the hue/saturation/luminance offsets for one of the eight
// fixed HSL panel bands, in band order: red, orange, yellow, green, aqua,
// blue, purple, magenta.
type HSLBand struct {
	Hue       float32 // [-1,1]
	Sat       float32 // [-1,1]
	Luminance float32 // [-1,1]
}

// Curves bundles the four tone curves a global or mask record carries.
type Curves struct {
	Luma, Red, Green, Blue Curve
}

func (c Curves) validate(prefix string) error {
	if err := c.Luma.validate(prefix + ".luma"); err != nil {
		return err
	}
	if err := c.Red.validate(prefix + ".red"); err != nil {
		return err
	}
	if err := c.Green.validate(prefix + ".green"); err != nil {
		return err
	}
	return c.Blue.validate(prefix + ".blue")
}

// AgXMatrices holds the rendering-space round-trip matrix pair for the AgX
// tone-mapper: a 3x3 rotation and its inverse, row-major.
type AgXMatrices struct {
	Forward [3][3]float32
	Inverse [3][3]float32
}

// DefaultAgXMatrices returns the identity pair, used when the caller has no
// gamut-specific rotation to apply.
func DefaultAgXMatrices() AgXMatrices {
	identity := [3][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	return AgXMatrices{Forward: identity, Inverse: identity}
}

func (m AgXMatrices) gpuPad() (fwd, inv [3][4]float32) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fwd[i][j] = m.Forward[i][j]
			inv[i][j] = m.Inverse[i][j]
		}
	}
	return fwd, inv
}

// Global is the fixed-layout global adjustment record (spec.md §3).
type Global struct {
	Exposure, Brightness, Contrast, Highlights, Shadows, Whites, Blacks float32

	Temperature, Tint float32

	Saturation, Vibrance float32

	Sharpness, Clarity, Structure, Centre float32

	LumaNR, ColorNR float32

	Dehaze float32

	VignetteAmount, VignetteMidpoint, VignetteRoundness, VignetteFeather float32

	GrainAmount, GrainSize, GrainRoughness float32

	CARedCyan, CABlueYellow float32

	Tonemapper   TonemapperMode
	IsRaw        bool
	ShowClipping bool
	HasLUT       bool
	LUTIntensity float32

	Grading     Grading
	Calibration Calibration

	Glow, Halation, Flare float32

	HSL [HSLBandCount]HSLBand

	Curves Curves

	AgX AgXMatrices
}

// Mask is the per-mask adjustment record: the subset of Global that spatial
// masks can carry (spec.md §3 "Mask adjustments"). There is no vignette,
// LUT, CA, grain, or tone-mapper selection at the mask level.
type Mask struct {
	Exposure, Brightness, Contrast, Highlights, Shadows, Whites, Blacks float32

	Temperature, Tint float32

	Saturation, Vibrance float32

	Sharpness, Clarity, Structure, Centre float32

	LumaNR, ColorNR float32

	Dehaze float32

	Grading     Grading
	Calibration Calibration

	Glow, Halation, Flare float32

	HSL [HSLBandCount]HSLBand

	Curves Curves
}

// Uniform is the top-level parameter bundle dispatched per tile (spec.md
// §3 "Pipeline uniform").
type Uniform struct {
	Global    Global
	Masks     [MaxMasks]Mask
	MaskCount int
	TileX     int
	TileY     int
	AtlasCols int
}

// Validate checks every invariant spec.md §3 states for the bundle: mask
// count in range, curve shapes, and the has_lut/lut_intensity relationship.
// It does not check texture bindings; that is the dispatcher's job once it
// has the actual TextureSet in hand (see dispatcher.Dispatcher.Dispatch).
func (u Uniform) Validate() error {
	if u.MaskCount < 0 || u.MaskCount > MaxMasks {
		return fmt.Errorf("adjustments: mask_count %d outside {0..%d}", u.MaskCount, MaxMasks)
	}
	if err := u.Global.Curves.validate("global"); err != nil {
		return err
	}
	for i := 0; i < u.MaskCount; i++ {
		if err := u.Masks[i].Curves.validate(fmt.Sprintf("mask[%d]", i)); err != nil {
			return err
		}
	}
	if u.Global.HasLUT && u.Global.LUTIntensity < 0 {
		return fmt.Errorf("adjustments: lut_intensity must be >= 0")
	}
	return nil
}

// GPU packs the bundle into the byte layout the compute kernel consumes.
// Callers must call Validate first; GPU does not re-validate curve shape.
func (u Uniform) GPU() gpucore.PipelineUniformGPU {
	var out gpucore.PipelineUniformGPU
	out.Global = u.Global.gpu()
	for i := 0; i < u.MaskCount && i < MaxMasks; i++ {
		out.Masks[i] = u.Masks[i].gpu()
	}
	out.MaskCount = uint32(u.MaskCount)   //nolint:gosec // G115: validated in {0..MaxMasks}
	out.TileOffsetX = uint32(u.TileX)     //nolint:gosec // G115: tile offsets are non-negative pixel coords
	out.TileOffsetY = uint32(u.TileY)     //nolint:gosec // G115: tile offsets are non-negative pixel coords
	out.AtlasCols = uint32(u.AtlasCols)   //nolint:gosec // G115: atlas column count is non-negative
	return out
}

func (g Global) gpu() gpucore.AdjustmentsGPU {
	fwd, inv := g.AgX.gpuPad()
	a := gpucore.AdjustmentsGPU{
		Exposure: g.Exposure, Brightness: g.Brightness, Contrast: g.Contrast,
		Highlights: g.Highlights, Shadows: g.Shadows, Whites: g.Whites, Blacks: g.Blacks,
		Temperature: g.Temperature, Tint: g.Tint,
		Saturation: g.Saturation, Vibrance: g.Vibrance,
		Sharpness: g.Sharpness, Clarity: g.Clarity, Structure: g.Structure, Centre: g.Centre,
		LumaNR: g.LumaNR, ColorNR: g.ColorNR,
		Dehaze: g.Dehaze,
		VignetteAmount: g.VignetteAmount, VignetteMidpoint: g.VignetteMidpoint,
		VignetteRoundness: g.VignetteRoundness, VignetteFeather: g.VignetteFeather,
		GrainAmount: g.GrainAmount, GrainSize: g.GrainSize, GrainRoughness: g.GrainRoughness,
		CARedCyan: g.CARedCyan, CABlueYellow: g.CABlueYellow,
		TonemapperMode: uint32(g.Tonemapper),
		IsRaw:          boolToU32(g.IsRaw),
		ShowClipping:   boolToU32(g.ShowClipping),
		HasLUT:         boolToU32(g.HasLUT),
		LUTIntensity:   g.LUTIntensity,
		GradingShadows: g.Grading.Shadows.gpu(), GradingMidtones: g.Grading.Midtones.gpu(),
		GradingHighlights: g.Grading.Highlands.gpu(),
		GradingBlending:   g.Grading.Blending, GradingBalance: g.Grading.Balance,
		CalibrationShadowTint: g.Calibration.ShadowTint,
		CalibrationRed:        g.Calibration.Red.gpu(),
		CalibrationGreen:      g.Calibration.Green.gpu(),
		CalibrationBlue:       g.Calibration.Blue.gpu(),
		Glow: g.Glow, Halation: g.Halation, Flare: g.Flare,
		CurveLuma: g.Curves.Luma.gpu(), CurveRed: g.Curves.Red.gpu(),
		CurveGreen: g.Curves.Green.gpu(), CurveBlue: g.Curves.Blue.gpu(),
		AgXMatrix: fwd, AgXMatrixInverse: inv,
	}
	for i, b := range g.HSL {
		a.HSL[i] = gpucore.HSLBandGPU{Hue: b.Hue, Sat: b.Sat, Luminance: b.Luminance}
	}
	return a
}

func (m Mask) gpu() gpucore.AdjustmentsGPU {
	a := gpucore.AdjustmentsGPU{
		Exposure: m.Exposure, Brightness: m.Brightness, Contrast: m.Contrast,
		Highlights: m.Highlights, Shadows: m.Shadows, Whites: m.Whites, Blacks: m.Blacks,
		Temperature: m.Temperature, Tint: m.Tint,
		Saturation: m.Saturation, Vibrance: m.Vibrance,
		Sharpness: m.Sharpness, Clarity: m.Clarity, Structure: m.Structure, Centre: m.Centre,
		LumaNR: m.LumaNR, ColorNR: m.ColorNR,
		Dehaze: m.Dehaze,
		GradingShadows: m.Grading.Shadows.gpu(), GradingMidtones: m.Grading.Midtones.gpu(),
		GradingHighlights: m.Grading.Highlands.gpu(),
		GradingBlending:   m.Grading.Blending, GradingBalance: m.Grading.Balance,
		CalibrationShadowTint: m.Calibration.ShadowTint,
		CalibrationRed:        m.Calibration.Red.gpu(),
		CalibrationGreen:      m.Calibration.Green.gpu(),
		CalibrationBlue:       m.Calibration.Blue.gpu(),
		Glow: m.Glow, Halation: m.Halation, Flare: m.Flare,
		CurveLuma: m.Curves.Luma.gpu(), CurveRed: m.Curves.Red.gpu(),
		CurveGreen: m.Curves.Green.gpu(), CurveBlue: m.Curves.Blue.gpu(),
	}
	for i, b := range m.HSL {
		a.HSL[i] = gpucore.HSLBandGPU{Hue: b.Hue, Sat: b.Sat, Luminance: b.Luminance}
	}
	return a
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// SortedByX reports whether pts is already sorted strictly ascending by X,
// used by callers assembling curves from unordered UI control points before
// constructing a Curve.
func SortedByX(pts []CurvePoint) bool {
	for i := 1; i < len(pts); i++ {
		if !(pts[i].X > pts[i-1].X) {
			return false
		}
	}
	return true
}
