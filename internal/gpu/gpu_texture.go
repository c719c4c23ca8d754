//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Texture-related errors.
var (
	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("wgpu: texture has been released")

	// ErrTextureSizeMismatch is returned when uploaded data doesn't match
	// the texture's byte size.
	ErrTextureSizeMismatch = errors.New("wgpu: data size does not match texture")

	// ErrNilPixmap is returned when the source pixel buffer is nil.
	ErrNilPixmap = errors.New("wgpu: pixel buffer is nil")

	// ErrTextureReadbackNotSupported is returned when readback is not available.
	ErrTextureReadbackNotSupported = errors.New("wgpu: texture readback not supported (stub)")

	// ErrInvalidDimensions is returned when width or height is invalid.
	ErrInvalidDimensions = errors.New("wgpu: invalid dimensions")
)

// TextureFormat represents the pixel format of a GPU texture used by the
// shading pipeline. Photo textures (input, output, LUT, flare) and mask
// influence textures use different bit depths, so unlike a plain rendering
// backend this includes float formats alongside the 8-bit ones.
type TextureFormat uint8

const (
	// TextureFormatRGBA8 is 8-bit-per-channel RGBA, used for the storage
	// output texture (spec: rgba8unorm, write-only).
	TextureFormatRGBA8 TextureFormat = iota

	// TextureFormatBGRA8 is BGRA8, used when a texture originates from a
	// platform swapchain rather than the pipeline's own buffers.
	TextureFormatBGRA8

	// TextureFormatR8 is single-channel 8-bit, used for the CPU reference
	// path's mask textures.
	TextureFormatR8

	// TextureFormatRGBA32Float is 32-bit float RGBA, used for the linear
	// working-space input texture and for blur provider textures.
	TextureFormatRGBA32Float

	// TextureFormatR32Float is single-channel 32-bit float, used for mask
	// influence textures and the working-space luminance readback.
	TextureFormatR32Float

	// TextureFormatLUT3D is a 3D float texture holding the optional creative
	// LUT, sampled with tetrahedral interpolation by the shader.
	TextureFormatLUT3D
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "RGBA8"
	case TextureFormatBGRA8:
		return "BGRA8"
	case TextureFormatR8:
		return "R8"
	case TextureFormatRGBA32Float:
		return "RGBA32Float"
	case TextureFormatR32Float:
		return "R32Float"
	case TextureFormatLUT3D:
		return "LUT3D"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per texel for the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8, TextureFormatBGRA8:
		return 4
	case TextureFormatR8:
		return 1
	case TextureFormatRGBA32Float, TextureFormatLUT3D:
		return 16
	case TextureFormatR32Float:
		return 4
	default:
		return 4
	}
}

// ToWGPUFormat converts to the wgpu texture format used at texture creation.
func (f TextureFormat) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case TextureFormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case TextureFormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case TextureFormatR8:
		return gputypes.TextureFormatR8Unorm
	case TextureFormatRGBA32Float, TextureFormatLUT3D:
		return gputypes.TextureFormatRGBA32Float
	case TextureFormatR32Float:
		return gputypes.TextureFormatR32Float
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// GPUTexture represents a GPU texture resource: an input image, a blur
// provider, a mask influence texture, the output storage texture, or the
// optional LUT/flare textures.
//
// GPUTexture is safe for concurrent read access. Write operations (Upload,
// Close) should be synchronized externally.
type GPUTexture struct {
	mu sync.RWMutex

	device hal.Device
	handle hal.Texture
	view   hal.TextureView

	width  int
	height int
	depth  int
	format TextureFormat

	sizeBytes uint64
	manager   *MemoryManager // optional, for memory tracking

	released atomic.Bool
	label    string
}

// TextureConfig holds configuration for creating a new texture.
type TextureConfig struct {
	Width  int
	Height int

	// Depth is the number of layers along the third axis, used only for
	// TextureFormatLUT3D; zero elsewhere.
	Depth int

	Format TextureFormat
	Label  string

	// Usage flags; defaults to DefaultTextureUsage when zero.
	Usage gputypes.TextureUsage
}

// DefaultTextureUsage is the usage for sampled input textures: blur
// providers, mask influence textures, and the resolved linear input.
const DefaultTextureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding

// StorageOutputUsage is the usage for the write-only rgba8unorm output
// texture the compute kernel writes each shaded tile into.
const StorageOutputUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageStorageBinding

// CreateTexture creates a new GPU texture with the given configuration. A
// nil device creates a logical texture with no GPU-side resource, used by
// tests that only exercise host-side bookkeeping (dimensions, byte
// accounting, memory manager eviction) without a real adapter.
func CreateTexture(device hal.Device, config TextureConfig) (*GPUTexture, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if config.Format == TextureFormatLUT3D && config.Depth <= 0 {
		return nil, fmt.Errorf("%w: LUT3D texture requires Depth > 0", ErrInvalidDimensions)
	}

	depth := config.Depth
	if depth <= 0 {
		depth = 1
	}

	//nolint:gosec // G115: dimensions are validated positive above
	sizeBytes := uint64(config.Width * config.Height * depth * config.Format.BytesPerPixel())

	tex := &GPUTexture{
		width:     config.Width,
		height:    config.Height,
		depth:     depth,
		format:    config.Format,
		sizeBytes: sizeBytes,
		label:     config.Label,
	}

	if device == nil {
		return tex, nil
	}

	usage := config.Usage
	if usage == 0 {
		usage = DefaultTextureUsage
	}

	dimension := gputypes.TextureDimension2D
	if config.Format == TextureFormatLUT3D {
		dimension = gputypes.TextureDimension3D
	}

	//nolint:gosec // G115: dimensions are validated positive above
	handle, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         config.Label,
		Size:          hal.Extent3D{Width: uint32(config.Width), Height: uint32(config.Height), DepthOrArrayLayers: uint32(depth)},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     dimension,
		Format:        config.Format.ToWGPUFormat(),
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", config.Label, err)
	}

	view, err := device.CreateTextureView(handle, &hal.TextureViewDescriptor{Label: config.Label + "_view"})
	if err != nil {
		device.DestroyTexture(handle)
		return nil, fmt.Errorf("create texture view %q: %w", config.Label, err)
	}

	tex.device = device
	tex.handle = handle
	tex.view = view
	return tex, nil
}

// CreateTextureFromBytes creates a texture and passes pixel data laid out
// tightly in row-major order for the given format to Upload, which checks
// its size but does not copy it to the GPU.
func CreateTextureFromBytes(device hal.Device, width, height int, format TextureFormat, data []byte, label string) (*GPUTexture, error) {
	tex, err := CreateTexture(device, TextureConfig{Width: width, Height: height, Format: format, Label: label})
	if err != nil {
		return nil, err
	}

	if err := tex.Upload(data); err != nil {
		tex.Close()
		return nil, err
	}

	return tex, nil
}

// Width returns the texture width in pixels.
func (t *GPUTexture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *GPUTexture) Height() int { return t.height }

// Depth returns the texture depth (1 for 2D textures).
func (t *GPUTexture) Depth() int { return t.depth }

// Format returns the texture format.
func (t *GPUTexture) Format() TextureFormat { return t.format }

// SizeBytes returns the texture size in bytes.
func (t *GPUTexture) SizeBytes() uint64 { return t.sizeBytes }

// Label returns the debug label.
func (t *GPUTexture) Label() string { return t.label }

// IsReleased returns true if the texture has been released.
func (t *GPUTexture) IsReleased() bool { return t.released.Load() }

// Handle returns the underlying hal texture, or nil for a logical texture.
func (t *GPUTexture) Handle() hal.Texture {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle
}

// View returns the texture view used to bind this texture into a bind
// group, or nil for a logical texture.
func (t *GPUTexture) View() hal.TextureView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.view
}

// Upload checks tightly packed row-major pixel data against the texture:
// data must be exactly SizeBytes() long. It does not copy the data to the
// GPU texture.
func (t *GPUTexture) Upload(data []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}

	if data == nil {
		return ErrNilPixmap
	}

	//nolint:gosec // G115: sizeBytes was computed from validated positive dimensions
	if uint64(len(data)) != t.sizeBytes {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrTextureSizeMismatch, t.sizeBytes, len(data))
	}

	// TODO: Actual GPU upload via queue.WriteTexture once the wgpu backend
	// exposes it; the logical texture and its byte size are tracked
	// regardless so bind group construction and memory accounting work.

	return nil
}

// UploadRegion checks pixel data for a sub-rectangle of the texture: the
// region must lie inside the texture and data must match its size. It does
// not copy the data to the GPU texture.
func (t *GPUTexture) UploadRegion(x, y, w, h int, data []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}

	if data == nil {
		return ErrNilPixmap
	}

	if x < 0 || y < 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("%w: region (%d,%d)+(%dx%d) exceeds texture bounds (%dx%d)",
			ErrInvalidDimensions, x, y, w, h, t.width, t.height)
	}

	expected := w * h * t.format.BytesPerPixel()
	if len(data) != expected {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrTextureSizeMismatch, expected, len(data))
	}

	// TODO: Actual GPU upload with Origin3D{X, Y, 0} once available.

	return nil
}

// Download reads the texture contents back to the host. This requires a
// staging buffer and device synchronization the wgpu backend does not yet
// expose, so it currently reports ErrTextureReadbackNotSupported; callers
// that need the shaded result (e.g. histogram.Readback) read from the
// dispatcher's own staging buffer instead.
func (t *GPUTexture) Download() ([]byte, error) {
	if t.released.Load() {
		return nil, ErrTextureReleased
	}
	return nil, ErrTextureReadbackNotSupported
}

// SetMemoryManager sets the memory manager for tracking. Called internally
// when allocating through MemoryManager.
func (t *GPUTexture) SetMemoryManager(m *MemoryManager) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.manager = m
}

// Close releases the GPU texture resources. The texture must not be used
// after Close is called.
func (t *GPUTexture) Close() {
	if t.released.Swap(true) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.manager != nil {
		t.manager.unregisterTexture(t)
	}

	if t.device != nil {
		if t.view != nil {
			t.device.DestroyTextureView(t.view)
		}
		if t.handle != nil {
			t.device.DestroyTexture(t.handle)
		}
	}

	t.handle = nil
	t.view = nil
	t.device = nil
	t.manager = nil
}

// String returns a string representation of the texture.
func (t *GPUTexture) String() string {
	status := "active"
	if t.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("GPUTexture[%s %dx%dx%d %s %d bytes %s]",
		t.label, t.width, t.height, t.depth, t.format, t.sizeBytes, status)
}
