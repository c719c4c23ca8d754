package gpucore

import (
	"bytes"
	"encoding/binary"
)

// Resource IDs
//
// These opaque IDs represent GPU resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// ComputePipelineID is an opaque handle to a compute pipeline.
type ComputePipelineID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer can be mapped for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 4

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 7

	// BufferUsageIndirect indicates the buffer can be used for indirect dispatch/draw.
	BufferUsageIndirect BufferUsage = 1 << 8
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA, normalized unsigned integer in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatBGRA8UnormSRGB is 8-bit BGRA, normalized unsigned integer in sRGB color space.
	TextureFormatBGRA8UnormSRGB

	// TextureFormatR8Unorm is 8-bit red channel only, normalized unsigned integer.
	TextureFormatR8Unorm

	// TextureFormatR32Float is 32-bit red channel only, floating point.
	TextureFormatR32Float

	// TextureFormatRG32Float is 32-bit RG, floating point.
	TextureFormatRG32Float

	// TextureFormatRGBA32Float is 32-bit RGBA, floating point.
	TextureFormatRGBA32Float
)

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageTextureBinding indicates the texture can be bound as a sampled texture.
	TextureUsageTextureBinding TextureUsage = 1 << 2

	// TextureUsageStorageBinding indicates the texture can be bound as a storage texture.
	TextureUsageStorageBinding TextureUsage = 1 << 3

	// TextureUsageRenderAttachment indicates the texture can be used as a render target.
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// BindingType specifies the type of a shader binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeStorageBuffer is a storage buffer binding (read-write).
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer

	// BindingTypeSampler is a texture sampler binding.
	BindingTypeSampler

	// BindingTypeSampledTexture is a sampled texture binding.
	BindingTypeSampledTexture

	// BindingTypeStorageTexture is a storage texture binding.
	BindingTypeStorageTexture
)

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the pipeline layout.
	Layout PipelineLayoutID

	// ShaderModule contains the compute shader.
	ShaderModule ShaderModuleID

	// EntryPoint is the name of the shader entry point function.
	EntryPoint string
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries defines the bindings in this layout.
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Type is the type of resource bound at this index.
	Type BindingType

	// MinBindingSize is the minimum buffer size for buffer bindings.
	// Set to 0 for non-buffer bindings.
	MinBindingSize uint64
}

// BindGroupEntry describes a single binding in a bind group.
type BindGroupEntry struct {
	// Binding is the binding index.
	Binding uint32

	// Buffer is the buffer to bind (for buffer bindings).
	Buffer BufferID

	// Offset is the offset into the buffer.
	Offset uint64

	// Size is the size of the buffer range to bind.
	// Use 0 to bind the entire buffer from offset.
	Size uint64

	// Texture is the texture to bind (for texture bindings).
	Texture TextureID
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the bind group layout.
	Layout BindGroupLayoutID

	// Entries are the resource bindings.
	Entries []BindGroupEntry
}

// GPU data structures
//
// These structures mirror the uniform and storage layouts consumed by the
// shading pipeline's compute shader (see internal/gpu/shaders/pipeline.wgsl).
// Field order and sizes must stay in lockstep with the WGSL struct
// definitions; every struct here uses only types with well-defined std140
// alignment (float32, uint32, int32) and explicit padding where needed.

// CurvePointCount is the maximum number of control points a tone curve can hold.
const CurvePointCount = 16

// MaxMasks is the maximum number of simultaneous per-mask adjustment stacks.
const MaxMasks = 8

// HSLBandCount is the number of fixed hue bands in the HSL panel.
const HSLBandCount = 8

// CurvePoint is a single (x, y) control point of a tone curve, both axes in [0,255].
type CurvePoint struct {
	X float32
	Y float32
}

// CurveGPU is one of the four tone curves (luma, red, green, blue).
// Count gives the number of valid entries in Points; the remainder is undefined.
type CurveGPU struct {
	Points [CurvePointCount]CurvePoint
	Count  uint32
	_pad0  uint32
	_pad1  uint32
	_pad2  uint32
}

// GradingZoneGPU is one zone (shadows, midtones, or highlights) of color grading.
type GradingZoneGPU struct {
	Hue       float32
	Sat       float32
	Luminance float32
	_pad      float32
}

// PrimaryCalibrationGPU holds the hue/saturation adjustment for one RGB primary.
type PrimaryCalibrationGPU struct {
	Hue float32
	Sat float32
}

// HSLBandGPU holds the hue/saturation/luminance offsets for one of the eight
// fixed HSL panel bands. Center and Width are not stored here: they are
// compile-time constants baked into the shader (see spec §4.2 sub-operator
// contracts for the HSL panel).
type HSLBandGPU struct {
	Hue       float32
	Sat       float32
	Luminance float32
	_pad      float32
}

// AdjustmentsGPU is the fixed-layout global adjustment record (spec §3).
// The per-mask records in PipelineUniformGPU.Masks use the same type with
// the global-only fields zeroed and ignored by the shader (vignette, LUT,
// CA, grain, tonemapper selection).
type AdjustmentsGPU struct {
	// Tonal
	Exposure   float32
	Brightness float32
	Contrast   float32
	Highlights float32
	Shadows    float32
	Whites     float32
	Blacks     float32

	// White balance
	Temperature float32
	Tint        float32

	// Color
	Saturation float32
	Vibrance   float32

	// Spatial
	Sharpness float32
	Clarity   float32
	Structure float32
	Centre    float32

	// Noise reduction
	LumaNR  float32
	ColorNR float32

	// Dehaze
	Dehaze float32

	// Vignette
	VignetteAmount   float32
	VignetteMidpoint float32
	VignetteRoundness float32
	VignetteFeather  float32

	// Grain
	GrainAmount    float32
	GrainSize      float32
	GrainRoughness float32

	// Chromatic aberration
	CARedCyan   float32
	CABlueYellow float32

	// Tone-mapping / flags
	TonemapperMode uint32
	IsRaw          uint32
	ShowClipping   uint32
	HasLUT         uint32
	LUTIntensity   float32

	// Color grading
	GradingShadows   GradingZoneGPU
	GradingMidtones  GradingZoneGPU
	GradingHighlights GradingZoneGPU
	GradingBlending  float32
	GradingBalance   float32

	// Color calibration
	CalibrationShadowTint float32
	CalibrationRed        PrimaryCalibrationGPU
	CalibrationGreen      PrimaryCalibrationGPU
	CalibrationBlue       PrimaryCalibrationGPU

	// Creative
	Glow     float32
	Halation float32
	Flare    float32

	// HSL panel, fixed band order: red, orange, yellow, green, aqua, blue, purple, magenta
	HSL [HSLBandCount]HSLBandGPU

	// Curves: luma, red, green, blue
	CurveLuma  CurveGPU
	CurveRed   CurveGPU
	CurveGreen CurveGPU
	CurveBlue  CurveGPU

	// AgX rendering-space round trip matrices, row-major 3x3, padded to vec4 rows for std140.
	AgXMatrix        [3][4]float32
	AgXMatrixInverse [3][4]float32
}

// PipelineUniformGPU is the top-level dispatch uniform (spec §3): the global
// adjustment record, up to MaxMasks per-mask records, the active mask count,
// the tile's absolute pixel offset, and the mask atlas column count.
type PipelineUniformGPU struct {
	Global       AdjustmentsGPU
	Masks        [MaxMasks]AdjustmentsGPU
	MaskCount    uint32
	TileOffsetX  uint32
	TileOffsetY  uint32
	AtlasCols    uint32
}

// SizeInBytes returns the byte size of the uniform as laid out by ToBytes,
// matching the WGSL PipelineUniform struct's std140 size. Every field is a
// fixed-size numeric type or an array of them, so binary.Size applies
// directly instead of the manual byte-offset style used for the small,
// flat configs elsewhere in this package.
func (u PipelineUniformGPU) SizeInBytes() int {
	n := binary.Size(u)
	if n < 0 {
		panic("gpucore: PipelineUniformGPU contains a type binary.Size cannot measure")
	}
	return n
}

// ToBytes serializes the uniform to little-endian bytes for upload to the
// pipeline's uniform buffer.
func (u PipelineUniformGPU) ToBytes() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(u.SizeInBytes())
	if err := binary.Write(buf, binary.LittleEndian, u); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
