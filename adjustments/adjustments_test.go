package adjustments

import (
	"errors"
	"testing"

	"github.com/gogpu/rawshade/pipelineerr"
)

func identityUniform() Uniform {
	return Uniform{
		Global: Global{
			Curves: Curves{
				Luma: IdentityCurve(), Red: IdentityCurve(),
				Green: IdentityCurve(), Blue: IdentityCurve(),
			},
			AgX: DefaultAgXMatrices(),
		},
	}
}

func TestValidateIdentity(t *testing.T) {
	u := identityUniform()
	if err := u.Validate(); err != nil {
		t.Fatalf("identity uniform failed validation: %v", err)
	}
}

func TestValidateMaskCountOutOfRange(t *testing.T) {
	u := identityUniform()
	u.MaskCount = MaxMasks + 1
	if err := u.Validate(); err == nil {
		t.Fatal("expected error for mask_count > MaxMasks")
	}

	u.MaskCount = -1
	if err := u.Validate(); err == nil {
		t.Fatal("expected error for negative mask_count")
	}
}

func TestValidateCurvePointCount(t *testing.T) {
	u := identityUniform()
	u.Global.Curves.Luma = Curve{Points: []CurvePoint{{X: 0, Y: 0}}}

	err := u.Validate()
	if !errors.Is(err, pipelineerr.ErrInvalidCurve) {
		t.Fatalf("expected ErrInvalidCurve, got %v", err)
	}
}

func TestValidateCurveEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		points []CurvePoint
	}{
		{"first point not at 0", []CurvePoint{{X: 10, Y: 0}, {X: 255, Y: 255}}},
		{"last point not at 255", []CurvePoint{{X: 0, Y: 0}, {X: 200, Y: 255}}},
		{"not strictly ascending", []CurvePoint{{X: 0, Y: 0}, {X: 100, Y: 50}, {X: 100, Y: 200}, {X: 255, Y: 255}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := identityUniform()
			u.Global.Curves.Red = Curve{Points: tt.points}
			if err := u.Validate(); !errors.Is(err, pipelineerr.ErrInvalidCurve) {
				t.Errorf("expected ErrInvalidCurve, got %v", err)
			}
		})
	}
}

func TestValidateEmptyCurveIsIdentity(t *testing.T) {
	u := identityUniform()
	u.Global.Curves.Blue = Curve{} // absent, per doc treated as identity
	if err := u.Validate(); err != nil {
		t.Fatalf("empty curve should validate as identity, got %v", err)
	}
	if got := u.GPU().Global.CurveBlue.Count; got != 2 {
		t.Errorf("GPU() identity curve count = %d, want 2", got)
	}
}

func TestValidateMaskCurves(t *testing.T) {
	u := identityUniform()
	u.MaskCount = 1
	u.Masks[0].Curves.Green = Curve{Points: []CurvePoint{{X: 5, Y: 0}, {X: 255, Y: 255}}}

	if err := u.Validate(); !errors.Is(err, pipelineerr.ErrInvalidCurve) {
		t.Errorf("expected ErrInvalidCurve from mask curve, got %v", err)
	}
}

func TestValidateLUTIntensity(t *testing.T) {
	u := identityUniform()
	u.Global.HasLUT = true
	u.Global.LUTIntensity = -0.5

	if err := u.Validate(); err == nil {
		t.Fatal("expected error for negative lut_intensity with has_lut set")
	}
}

func TestGPUPacksMaskCountAndOffsets(t *testing.T) {
	u := identityUniform()
	u.MaskCount = 3
	u.TileX, u.TileY = 64, 128
	u.AtlasCols = 4

	packed := u.GPU()
	if packed.MaskCount != 3 {
		t.Errorf("MaskCount = %d, want 3", packed.MaskCount)
	}
	if packed.TileOffsetX != 64 || packed.TileOffsetY != 128 {
		t.Errorf("tile offset = (%d,%d), want (64,128)", packed.TileOffsetX, packed.TileOffsetY)
	}
	if packed.AtlasCols != 4 {
		t.Errorf("AtlasCols = %d, want 4", packed.AtlasCols)
	}
}

func TestSortedByX(t *testing.T) {
	if !SortedByX([]CurvePoint{{X: 0}, {X: 10}, {X: 255}}) {
		t.Error("expected ascending points to report sorted")
	}
	if SortedByX([]CurvePoint{{X: 10}, {X: 0}, {X: 255}}) {
		t.Error("expected out-of-order points to report unsorted")
	}
}
