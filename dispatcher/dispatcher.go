// Package dispatcher drives the shading pipeline's compute kernel one tile
// at a time. It validates the parameter bundle and the bound textures
// against the invariants spec.md §7 requires before the GPU ever sees them,
// so a bad host call surfaces as a typed pipelineerr rather than a device
// fault, then hands the dispatch off to internal/gpu.Pipeline.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rawshade/adjustments"
	"github.com/gogpu/rawshade/gpucore"
	"github.com/gogpu/rawshade/internal/gpu"
	"github.com/gogpu/rawshade/pipelineerr"
)

// SetLogger propagates a caller-supplied logger down into the GPU resource
// layer, mirroring the accelerator's own SetLogger propagation path.
func SetLogger(l *slog.Logger) {
	gpu.SetLogger(l)
}

// state is the dispatcher's lifecycle phase. Dispatch holds the mutex for
// the whole call, so a concurrent call waits for the previous one to finish
// and finds the dispatcher idle again.
type state int

const (
	stateIdle state = iota
	stateBound
	stateDispatched
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateBound:
		return "bound"
	case stateDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// Tile identifies the pixel region a single Dispatch call shades: its
// offset into the full image, checked together with its dimensions to lie
// inside the input texture, and its dimensions (for workgroup sizing). The
// offset the kernel uses for spatially-varying operators like vignette and
// dither comes from adjustments.Uniform's TileX and TileY, not from Tile.
type Tile struct {
	OffsetX, OffsetY int
	Width, Height    int
}

// TextureSet names the GPU textures a tile dispatch reads from and writes
// to, keyed the way spec.md §4.1 groups them. Unused mask, LUT, and flare
// slots are left nil; internal/gpu.Pipeline substitutes placeholders for
// bind group creation, but Dispatch still checks the adjustment bundle's
// declared usage against presence here so a missing binding is caught
// before it reaches the GPU (spec.md §7 MissingResource).
type TextureSet struct {
	Input  *gpu.GPUTexture
	Output *gpu.GPUTexture

	Sharpness, Tonal, Clarity, Structure *gpu.GPUTexture

	Masks [gpucore.MaxMasks]*gpu.GPUTexture

	LUT   *gpu.GPUTexture
	Flare *gpu.GPUTexture
}

// Dispatcher owns one compiled shading pipeline and serializes dispatch
// calls against it. A Dispatcher is safe for concurrent use; concurrent
// Dispatch calls queue on the internal mutex rather than racing bind group
// creation on the shared pipeline.
type Dispatcher struct {
	mu       sync.Mutex
	pipeline *gpu.Pipeline
	state    state
}

// New compiles the shading pipeline and returns a Dispatcher ready to
// accept tiles.
func New() (*Dispatcher, error) {
	p, err := gpu.NewPipeline()
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	return &Dispatcher{pipeline: p, state: stateIdle}, nil
}

// SetDeviceProvider switches the dispatcher's pipeline onto a shared GPU
// device from an external provider, so a host application's own device can
// be reused instead of standing up a second one.
func (d *Dispatcher) SetDeviceProvider(provider any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline.SetDeviceProvider(provider)
}

// Device returns the hal.Device backing this dispatcher's pipeline, so a
// host application can create GPUTexture resources compatible with it
// before calling Dispatch.
func (d *Dispatcher) Device() hal.Device {
	return d.pipeline.Device()
}

// ReadbackOutput copies a previously dispatched tile's output texture back
// to the host as tightly packed row-major bytes, for dependent host-side
// work that needs the shaded pixels (spec.md §5's histogram readback
// example of "dependent work" issued after a dispatch completes).
func (d *Dispatcher) ReadbackOutput(tex *gpu.GPUTexture) ([]byte, error) {
	return d.pipeline.ReadbackOutput(tex)
}

// Close releases the underlying pipeline's GPU resources. The dispatcher
// must not be used after Close is called.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipeline.Close()
	d.state = stateIdle
}

// Dispatch validates uniform and tex, then runs one compute pass over tile.
// It returns a pipelineerr value for any failure caught before submission
// (MissingResource, DimensionMismatch, InvalidCurve via uniform.Validate),
// and wraps a device-level failure from the GPU layer as DeviceLost or
// Timeout so callers can branch on pipelineerr.Recoverable uniformly.
//
// ctx is checked once, on entry, before validation; it is not passed to
// the GPU layer, so once Dispatch is past that check the dispatch runs to
// completion or to the pipeline's fixed fence timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, tile Tile, tex TextureSet, uniform adjustments.Uniform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := uniform.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateIdle {
		return fmt.Errorf("dispatcher: dispatch already in progress (state=%s)", d.state)
	}

	if err := bindResources(tex, uniform); err != nil {
		return err
	}
	if err := checkDimensions(tile, tex); err != nil {
		return err
	}
	d.state = stateBound

	gpuTex := gpu.TileTextures{
		Input:     tex.Input,
		Output:    tex.Output,
		Sharpness: tex.Sharpness,
		Tonal:     tex.Tonal,
		Clarity:   tex.Clarity,
		Structure: tex.Structure,
		Masks:     tex.Masks,
		LUT:       tex.LUT,
		Flare:     tex.Flare,
	}

	d.state = stateDispatched
	//nolint:gosec // G115: tile dimensions come from validated image geometry
	err := d.pipeline.Dispatch(uint32(tile.Width), uint32(tile.Height), gpuTex, uniform.GPU())
	d.state = stateIdle

	if err != nil {
		switch {
		case errors.Is(err, gpu.ErrDeviceLost):
			return pipelineerr.DeviceLost(err)
		case errors.Is(err, context.DeadlineExceeded):
			return pipelineerr.Timeout(err)
		default:
			return fmt.Errorf("dispatcher: %w", err)
		}
	}
	return nil
}

// bindResources checks that every texture the uniform's declared usage
// requires is actually present in tex, before any GPU call is made
// (spec.md §7 MissingResource).
func bindResources(tex TextureSet, uniform adjustments.Uniform) error {
	if tex.Input == nil {
		return pipelineerr.MissingResource("input")
	}
	if tex.Output == nil {
		return pipelineerr.MissingResource("output")
	}
	for name, t := range map[string]*gpu.GPUTexture{
		"blur.sharpness": tex.Sharpness, "blur.tonal": tex.Tonal, "blur.clarity": tex.Clarity, "blur.structure": tex.Structure,
	} {
		if t == nil {
			return pipelineerr.MissingResource(name)
		}
	}
	if uniform.Global.HasLUT && tex.LUT == nil {
		return pipelineerr.MissingResource("lut")
	}
	if uniform.Global.Flare > 0 && tex.Flare == nil {
		return pipelineerr.MissingResource("flare")
	}
	for i := 0; i < uniform.MaskCount; i++ {
		if tex.Masks[i] == nil {
			return pipelineerr.MissingResource(fmt.Sprintf("mask[%d]", i))
		}
	}
	return nil
}

// checkDimensions verifies every bound texture agrees with the input
// texture's size and that the tile lies inside the input (spec.md §7
// DimensionMismatch). Blur textures are a
// required, full-frame provider sampled at the tile's offset by the kernel
// (spec.md §6), so they are checked against the input unconditionally.
// bindResources normally rejects a nil blur texture before this runs, but a
// nil slot here still fails as a MissingResource rather than dereferencing
// it. Mask textures stay optional and are only checked when present.
func checkDimensions(tile Tile, tex TextureSet) error {
	if tex.Input.Width() != tex.Output.Width() || tex.Input.Height() != tex.Output.Height() {
		return pipelineerr.DimensionMismatch("output", tex.Output.Width(), tex.Output.Height(), tex.Input.Width(), tex.Input.Height())
	}
	if tile.OffsetX+tile.Width > tex.Input.Width() || tile.OffsetY+tile.Height > tex.Input.Height() {
		return pipelineerr.DimensionMismatch("tile", tile.Width, tile.Height, tex.Input.Width()-tile.OffsetX, tex.Input.Height()-tile.OffsetY)
	}
	for name, t := range map[string]*gpu.GPUTexture{
		"sharpness": tex.Sharpness, "tonal": tex.Tonal, "clarity": tex.Clarity, "structure": tex.Structure,
	} {
		if t == nil {
			return pipelineerr.MissingResource(name)
		}
		if t.Width() != tex.Input.Width() || t.Height() != tex.Input.Height() {
			return pipelineerr.DimensionMismatch(name, t.Width(), t.Height(), tex.Input.Width(), tex.Input.Height())
		}
	}
	for i, m := range tex.Masks {
		if m == nil {
			continue
		}
		if m.Width() != tex.Input.Width() || m.Height() != tex.Input.Height() {
			return pipelineerr.DimensionMismatch(fmt.Sprintf("mask[%d]", i), m.Width(), m.Height(), tex.Input.Width(), tex.Input.Height())
		}
	}
	return nil
}

