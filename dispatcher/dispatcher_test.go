package dispatcher

import (
	"errors"
	"testing"

	"github.com/gogpu/rawshade/adjustments"
	"github.com/gogpu/rawshade/internal/gpu"
	"github.com/gogpu/rawshade/pipelineerr"
)

func logicalTexture(t *testing.T, width, height int) *gpu.GPUTexture {
	t.Helper()
	tex, err := gpu.CreateTexture(nil, gpu.TextureConfig{Width: width, Height: height, Format: gpu.TextureFormatRGBA32Float})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return tex
}

func identityUniform() adjustments.Uniform {
	return adjustments.Uniform{
		Global: adjustments.Global{
			Curves: adjustments.Curves{
				Luma: adjustments.IdentityCurve(), Red: adjustments.IdentityCurve(),
				Green: adjustments.IdentityCurve(), Blue: adjustments.IdentityCurve(),
			},
			AgX: adjustments.DefaultAgXMatrices(),
		},
	}
}

func TestBindResourcesMissingInputOutput(t *testing.T) {
	tex := TextureSet{}
	if err := bindResources(tex, identityUniform()); !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for missing input, got %v", err)
	}

	tex.Input = logicalTexture(t, 4, 4)
	if err := bindResources(tex, identityUniform()); !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for missing output, got %v", err)
	}
}

func withBlurs(tex TextureSet, w, h int, t *testing.T) TextureSet {
	tex.Sharpness = logicalTexture(t, w, h)
	tex.Tonal = logicalTexture(t, w, h)
	tex.Clarity = logicalTexture(t, w, h)
	tex.Structure = logicalTexture(t, w, h)
	return tex
}

func TestBindResourcesRequiresEachBlurProvider(t *testing.T) {
	base := TextureSet{Input: logicalTexture(t, 4, 4), Output: logicalTexture(t, 4, 4)}
	u := identityUniform()

	if err := bindResources(base, u); !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for missing blur providers, got %v", err)
	}

	full := withBlurs(base, 4, 4, t)
	if err := bindResources(full, u); err != nil {
		t.Fatalf("bindResources with all blur providers supplied: %v", err)
	}

	missingOne := full
	missingOne.Structure = nil
	if err := bindResources(missingOne, u); !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for missing structure blur, got %v", err)
	}
}

func TestBindResourcesRequiresLUTWhenFlagged(t *testing.T) {
	tex := withBlurs(TextureSet{Input: logicalTexture(t, 4, 4), Output: logicalTexture(t, 4, 4)}, 4, 4, t)
	u := identityUniform()
	u.Global.HasLUT = true

	if err := bindResources(tex, u); !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for missing lut, got %v", err)
	}

	tex.LUT = logicalTexture(t, 32, 32)
	if err := bindResources(tex, u); err != nil {
		t.Fatalf("bindResources with lut supplied: %v", err)
	}
}

func TestBindResourcesRequiresFlareWhenPositive(t *testing.T) {
	tex := withBlurs(TextureSet{Input: logicalTexture(t, 4, 4), Output: logicalTexture(t, 4, 4)}, 4, 4, t)
	u := identityUniform()
	u.Global.Flare = 0.5

	if err := bindResources(tex, u); !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for missing flare, got %v", err)
	}
}

func TestBindResourcesRequiresEachMask(t *testing.T) {
	tex := withBlurs(TextureSet{Input: logicalTexture(t, 4, 4), Output: logicalTexture(t, 4, 4)}, 4, 4, t)
	u := identityUniform()
	u.MaskCount = 2
	tex.Masks[0] = logicalTexture(t, 4, 4)
	// Masks[1] intentionally left nil.

	err := bindResources(tex, u)
	if !errors.Is(err, pipelineerr.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource for mask[1], got %v", err)
	}
}

func TestCheckDimensionsOutputMismatch(t *testing.T) {
	tex := TextureSet{Input: logicalTexture(t, 8, 8), Output: logicalTexture(t, 4, 4)}
	tile := Tile{Width: 8, Height: 8}

	if err := checkDimensions(tile, tex); !errors.Is(err, pipelineerr.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for output size, got %v", err)
	}
}

func TestCheckDimensionsTileExceedsInput(t *testing.T) {
	tex := TextureSet{Input: logicalTexture(t, 8, 8), Output: logicalTexture(t, 8, 8)}
	tile := Tile{OffsetX: 4, OffsetY: 0, Width: 8, Height: 8}

	if err := checkDimensions(tile, tex); !errors.Is(err, pipelineerr.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for tile exceeding input, got %v", err)
	}
}

func TestCheckDimensionsMissingBlurProviderPanicsNever(t *testing.T) {
	// checkDimensions runs after bindResources in Dispatch, which already
	// rejects a nil blur texture; called directly (as in these tests) it
	// must still fail cleanly rather than dereferencing a nil texture.
	tex := TextureSet{Input: logicalTexture(t, 8, 8), Output: logicalTexture(t, 8, 8)}
	tile := Tile{Width: 8, Height: 8}

	if err := checkDimensions(tile, tex); err == nil {
		t.Fatalf("expected an error for missing blur providers, got nil")
	}
}

func TestCheckDimensionsBlurProviderMismatch(t *testing.T) {
	tex := withBlurs(TextureSet{
		Input:  logicalTexture(t, 8, 8),
		Output: logicalTexture(t, 8, 8),
	}, 8, 8, t)
	tex.Tonal = logicalTexture(t, 4, 4) // mismatched, everything else is 8x8
	tile := Tile{Width: 8, Height: 8}

	if err := checkDimensions(tile, tex); !errors.Is(err, pipelineerr.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for mismatched tonal blur provider, got %v", err)
	}
}

func TestCheckDimensionsMaskMismatch(t *testing.T) {
	tex := withBlurs(TextureSet{
		Input:  logicalTexture(t, 8, 8),
		Output: logicalTexture(t, 8, 8),
	}, 8, 8, t)
	tex.Masks[3] = logicalTexture(t, 2, 2)
	tile := Tile{Width: 8, Height: 8}

	if err := checkDimensions(tile, tex); !errors.Is(err, pipelineerr.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for mask[3], got %v", err)
	}
}

func TestCheckDimensionsValid(t *testing.T) {
	tex := withBlurs(TextureSet{
		Input:  logicalTexture(t, 16, 16),
		Output: logicalTexture(t, 16, 16),
	}, 16, 16, t)
	tex.Masks[0] = logicalTexture(t, 16, 16)
	tile := Tile{Width: 16, Height: 16}

	if err := checkDimensions(tile, tex); err != nil {
		t.Fatalf("expected valid dimensions to pass, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    state
		want string
	}{
		{stateIdle, "idle"},
		{stateBound, "bound"},
		{stateDispatched, "dispatched"},
		{state(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("state(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
