//go:build !nogpu

package gpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/rawshade/gpucore"
)

// pipelineFenceTimeout bounds how long Dispatch waits for a tile's compute
// pass to finish before reporting a timeout to the caller.
const pipelineFenceTimeout = 5 * time.Second

// TileTextures names the GPU texture resources a single tile dispatch reads
// from and writes to. Unused mask slots must be nil; the pipeline fills each
// nil slot of bind group 2 with a 1x1 placeholder texture rather than
// leaving bindings unset, since WGSL bind group layouts fix the
// binding count regardless of how many masks are active this tile.
type TileTextures struct {
	Input  *GPUTexture // group(0) binding(1): linear working-space source, rgba32float
	Output *GPUTexture // group(0) binding(2): storage output, rgba8unorm, write

	Sharpness *GPUTexture // group(1) binding(0)
	Tonal     *GPUTexture // group(1) binding(1)
	Clarity   *GPUTexture // group(1) binding(2)
	Structure *GPUTexture // group(1) binding(3)

	Masks [gpucore.MaxMasks]*GPUTexture // group(2) binding(0..7)

	LUT   *GPUTexture // group(3) binding(0), optional
	Flare *GPUTexture // group(3) binding(1), optional
}

// Pipeline is the compute pipeline for the shading kernel: one shader
// module, one bind group layout per resource group, one pipeline layout,
// and one compute pipeline, dispatched once per tile.
//
// Unlike a rasterization backend with a pipeline per draw operation, the
// shading pipeline has exactly one compute kernel; Pipeline exists to hold
// its compiled resources and drive per-tile dispatch.
type Pipeline struct {
	mu sync.RWMutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader hal.ShaderModule

	uniformLayout hal.BindGroupLayout // group(0): uniform, input, output, sampler
	blurLayout    hal.BindGroupLayout // group(1): 4 blur provider textures
	maskLayout    hal.BindGroupLayout // group(2): 8 mask influence textures
	lutLayout     hal.BindGroupLayout // group(3): LUT + flare textures

	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	sampler hal.Sampler

	mem        *MemoryManager
	uniformBuf *Buffer

	// placeholder* fill unused mask/LUT/flare bindings so bind group
	// creation always sees the fixed number of entries the layout expects.
	placeholderMask  *GPUTexture
	placeholderLUT   *GPUTexture
	placeholderFlare *GPUTexture

	externalDevice bool
	initialized    bool
}

// NewPipeline creates a standalone Vulkan device for the compute kernel and
// compiles it. Mirrors the accelerator pattern of opening its own device
// when no shared one is supplied; SetDeviceProvider below wires a shared
// device instead when one is available.
func NewPipeline() (*Pipeline, error) {
	p := &Pipeline{}
	if err := p.initGPU(); err != nil {
		return nil, err
	}
	if err := p.init(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("shading pipeline: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("shading pipeline: create instance: %w", err)
	}
	p.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("shading pipeline: %w", ErrNoGPU)
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("shading pipeline: open device: %w", err)
	}
	p.device = openDev.Device
	p.queue = openDev.Queue
	p.mem = NewMemoryManager(p.device, MemoryManagerConfig{})

	slogger().Info("shading pipeline: GPU initialized", "adapter", selected.Info.Name)
	return nil
}

// SetDeviceProvider switches the pipeline to a shared GPU device from an
// external provider, so a host application's own device can be reused
// instead of standing up a second one.
func (p *Pipeline) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("shading pipeline: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("shading pipeline: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("shading pipeline: provider HalQueue is not hal.Queue")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.destroyResources()
	if p.mem != nil {
		p.mem.Close()
	}
	if !p.externalDevice && p.device != nil {
		p.device.Destroy()
	}
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}

	p.device = device
	p.queue = queue
	p.mem = NewMemoryManager(p.device, MemoryManagerConfig{})
	p.externalDevice = true

	return p.initLocked()
}

// init compiles the shader and creates the bind group layouts, pipeline
// layout, sampler, and compute pipeline.
func (p *Pipeline) init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initLocked()
}

func (p *Pipeline) initLocked() error {
	if p.initialized {
		return nil
	}

	// CompileShaders runs the embedded WGSL through naga to SPIR-V before
	// handing it to the device, catching a malformed kernel at compile time
	// rather than at the first dispatch.
	shader, err := CompileShaders(p.device)
	if err != nil {
		return fmt.Errorf("shading pipeline: compile shader: %w", err)
	}
	p.shader = shader

	// group(0): uniform, input texture, output storage texture, sampler.
	uniformLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "shading_pipeline_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				StorageTexture: &gputypes.StorageTextureBindingLayout{
					Access:        gputypes.StorageTextureAccessWriteOnly,
					Format:        gputypes.TextureFormatRGBA8Unorm,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageCompute,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroyPartial(shader)
		return fmt.Errorf("shading pipeline: create uniform bind group layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	sampledEntry := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		}
	}

	// group(1): the four blur provider textures.
	blurLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "shading_pipeline_blur_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			sampledEntry(0), sampledEntry(1), sampledEntry(2), sampledEntry(3),
		},
	})
	if err != nil {
		p.destroyPartial(shader, uniformLayout)
		return fmt.Errorf("shading pipeline: create blur bind group layout: %w", err)
	}
	p.blurLayout = blurLayout

	// group(2): up to eight mask influence textures, one binding each since
	// binding arrays require an extension this pipeline does not assume.
	maskEntries := make([]gputypes.BindGroupLayoutEntry, gpucore.MaxMasks)
	for i := range maskEntries {
		maskEntries[i] = sampledEntry(uint32(i)) //nolint:gosec // G115: i < MaxMasks (8)
	}
	maskLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "shading_pipeline_mask_layout",
		Entries: maskEntries,
	})
	if err != nil {
		p.destroyPartial(shader, uniformLayout, blurLayout)
		return fmt.Errorf("shading pipeline: create mask bind group layout: %w", err)
	}
	p.maskLayout = maskLayout

	// group(3): the 3D LUT and the flare texture.
	lutLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "shading_pipeline_lut_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension3D,
				},
			},
			sampledEntry(1),
		},
	})
	if err != nil {
		p.destroyPartial(shader, uniformLayout, blurLayout, maskLayout)
		return fmt.Errorf("shading pipeline: create LUT bind group layout: %w", err)
	}
	p.lutLayout = lutLayout

	pipelineLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "shading_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{uniformLayout, blurLayout, maskLayout, lutLayout},
	})
	if err != nil {
		p.destroyPartial(shader, uniformLayout, blurLayout, maskLayout, lutLayout)
		return fmt.Errorf("shading pipeline: create pipeline layout: %w", err)
	}
	p.pipelineLayout = pipelineLayout

	pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "shading_pipeline",
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shader,
			EntryPoint: EntryPoint,
		},
	})
	if err != nil {
		p.device.DestroyPipelineLayout(pipelineLayout)
		p.destroyPartial(shader, uniformLayout, blurLayout, maskLayout, lutLayout)
		return fmt.Errorf("shading pipeline: create compute pipeline: %w", err)
	}
	p.pipeline = pipeline

	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "shading_pipeline_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		p.device.DestroyComputePipeline(pipeline)
		p.device.DestroyPipelineLayout(pipelineLayout)
		p.destroyPartial(shader, uniformLayout, blurLayout, maskLayout, lutLayout)
		return fmt.Errorf("shading pipeline: create sampler: %w", err)
	}
	p.sampler = sampler

	uniformBuf, err := CreateBuffer(p.device, &BufferDescriptor{
		Label: "shading_pipeline_uniform",
		Size:  uint64(gpucore.PipelineUniformGPU{}.SizeInBytes()),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		p.device.DestroySampler(sampler)
		p.device.DestroyComputePipeline(pipeline)
		p.device.DestroyPipelineLayout(pipelineLayout)
		p.destroyPartial(shader, uniformLayout, blurLayout, maskLayout, lutLayout)
		return fmt.Errorf("shading pipeline: create uniform buffer: %w", err)
	}
	p.uniformBuf = uniformBuf

	slogger().Info("shading pipeline: compiled", "groups", 4, "masks", gpucore.MaxMasks)
	p.initialized = true
	return nil
}

func (p *Pipeline) destroyPartial(shader hal.ShaderModule, layouts ...hal.BindGroupLayout) {
	for _, l := range layouts {
		if l != nil {
			p.device.DestroyBindGroupLayout(l)
		}
	}
	if shader != nil {
		p.device.DestroyShaderModule(shader)
	}
}

func (p *Pipeline) destroyResources() {
	for _, t := range []*GPUTexture{p.placeholderMask, p.placeholderLUT, p.placeholderFlare} {
		if t != nil {
			t.Close()
		}
	}
	p.placeholderMask, p.placeholderLUT, p.placeholderFlare = nil, nil, nil

	if p.uniformBuf != nil {
		p.uniformBuf.Destroy()
		p.uniformBuf = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeline != nil {
		p.device.DestroyComputePipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipelineLayout != nil {
		p.device.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	for _, l := range []*hal.BindGroupLayout{&p.uniformLayout, &p.blurLayout, &p.maskLayout, &p.lutLayout} {
		if *l != nil {
			p.device.DestroyBindGroupLayout(*l)
			*l = nil
		}
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
	p.initialized = false
}

// Close releases all GPU resources held by the pipeline.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.destroyResources()

	if p.mem != nil {
		p.mem.Close()
		p.mem = nil
	}

	if !p.externalDevice {
		if p.device != nil {
			p.device.Destroy()
		}
		if p.instance != nil {
			p.instance.Destroy()
		}
	}
	p.device = nil
	p.queue = nil
	p.instance = nil
}

// placeholderView returns a 1x1 texture view to satisfy a fixed binding count
// when a mask slot, LUT, or flare texture is not in use this tile. It is
// created lazily through the pipeline's MemoryManager, so these small,
// long-lived textures are tracked against the same budget as any other
// texture the pipeline allocates, and cached on the Pipeline.
func (p *Pipeline) placeholderView(format TextureFormat, depth int) (hal.TextureView, error) {
	switch format {
	case TextureFormatR32Float:
		if p.placeholderMask == nil {
			tex, err := p.mem.AllocTexture(TextureConfig{Width: 1, Height: 1, Format: TextureFormatR32Float, Label: "shading_pipeline_mask_placeholder"})
			if err != nil {
				return nil, err
			}
			p.placeholderMask = tex
		}
		return p.placeholderMask.View(), nil
	case TextureFormatLUT3D:
		if p.placeholderLUT == nil {
			tex, err := p.mem.AllocTexture(TextureConfig{Width: 1, Height: 1, Depth: 1, Format: TextureFormatLUT3D, Label: "shading_pipeline_lut_placeholder"})
			if err != nil {
				return nil, err
			}
			p.placeholderLUT = tex
		}
		return p.placeholderLUT.View(), nil
	default:
		if p.placeholderFlare == nil {
			tex, err := p.mem.AllocTexture(TextureConfig{Width: 1, Height: 1, Format: TextureFormatRGBA32Float, Label: "shading_pipeline_flare_placeholder"})
			if err != nil {
				return nil, err
			}
			p.placeholderFlare = tex
		}
		return p.placeholderFlare.View(), nil
	}
}

// Device returns the hal.Device backing this pipeline, so callers can
// create GPUTexture resources compatible with it.
func (p *Pipeline) Device() hal.Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

func viewOf(tex *GPUTexture) hal.TextureView {
	if tex == nil {
		return nil
	}
	return tex.View()
}

// dispatchResources tracks per-tile GPU resources so they can be torn down
// once a dispatch completes or fails partway through.
type dispatchResources struct {
	device     hal.Device
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
	fence      hal.Fence
}

func (r *dispatchResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	for _, g := range r.bindGroups {
		r.device.DestroyBindGroup(g)
	}
}

// Dispatch uploads uniform to the GPU and runs one compute pass over a
// tileWidth x tileHeight region using the bound textures, then blocks until
// the GPU signals completion.
func (p *Pipeline) Dispatch(tileWidth, tileHeight uint32, tex TileTextures, uniform gpucore.PipelineUniformGPU) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return fmt.Errorf("shading pipeline: %w", ErrNotInitialized)
	}
	if tex.Input == nil || tex.Output == nil {
		return fmt.Errorf("shading pipeline: input and output textures are required")
	}
	if tex.Sharpness == nil || tex.Tonal == nil || tex.Clarity == nil || tex.Structure == nil {
		return fmt.Errorf("shading pipeline: all four blur textures (sharpness, tonal, clarity, structure) are required")
	}

	p.queue.WriteBuffer(p.uniformBuf.Raw(), 0, uniform.ToBytes())

	uniformBG, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "shading_pipeline_uniform_bg",
		Layout: p.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.uniformBuf.Raw().NativeHandle(), Offset: 0, Size: uint64(uniform.SizeInBytes())}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: tex.Input.View().NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: tex.Output.View().NativeHandle()}},
			{Binding: 3, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("shading pipeline: create uniform bind group: %w", err)
	}

	// Blur textures are a required input (spec.md §6 lists them with no
	// "Optional" qualifier, unlike LUT and flare below), checked above; bind
	// them directly rather than substituting a placeholder for a missing one.
	blurBG, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "shading_pipeline_blur_bg",
		Layout: p.blurLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: tex.Sharpness.View().NativeHandle()}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: tex.Tonal.View().NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: tex.Clarity.View().NativeHandle()}},
			{Binding: 3, Resource: gputypes.TextureViewBinding{TextureView: tex.Structure.View().NativeHandle()}},
		},
	})
	if err != nil {
		p.device.DestroyBindGroup(uniformBG)
		return fmt.Errorf("shading pipeline: create blur bind group: %w", err)
	}

	maskPlaceholder, err := p.placeholderView(TextureFormatR32Float, 1)
	if err != nil {
		p.device.DestroyBindGroup(uniformBG)
		p.device.DestroyBindGroup(blurBG)
		return fmt.Errorf("shading pipeline: create mask placeholder: %w", err)
	}
	maskEntries := make([]gputypes.BindGroupEntry, gpucore.MaxMasks)
	for i := 0; i < gpucore.MaxMasks; i++ {
		view := maskPlaceholder
		if v := viewOf(tex.Masks[i]); v != nil {
			view = v
		}
		maskEntries[i] = gputypes.BindGroupEntry{Binding: uint32(i), Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}} //nolint:gosec // G115: i < MaxMasks
	}
	maskBG, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "shading_pipeline_mask_bg",
		Layout:  p.maskLayout,
		Entries: maskEntries,
	})
	if err != nil {
		p.device.DestroyBindGroup(uniformBG)
		p.device.DestroyBindGroup(blurBG)
		return fmt.Errorf("shading pipeline: create mask bind group: %w", err)
	}

	lutPlaceholder, err := p.placeholderView(TextureFormatLUT3D, 1)
	if err != nil {
		p.device.DestroyBindGroup(uniformBG)
		p.device.DestroyBindGroup(blurBG)
		p.device.DestroyBindGroup(maskBG)
		return fmt.Errorf("shading pipeline: create LUT placeholder: %w", err)
	}
	flarePlaceholder, err := p.placeholderView(TextureFormatRGBA32Float, 1)
	if err != nil {
		p.device.DestroyBindGroup(uniformBG)
		p.device.DestroyBindGroup(blurBG)
		p.device.DestroyBindGroup(maskBG)
		return fmt.Errorf("shading pipeline: create placeholder texture: %w", err)
	}
	lutView := lutPlaceholder
	if v := viewOf(tex.LUT); v != nil {
		lutView = v
	}
	flareView := flarePlaceholder
	if v := viewOf(tex.Flare); v != nil {
		flareView = v
	}
	lutBG, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "shading_pipeline_lut_bg",
		Layout: p.lutLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: lutView.NativeHandle()}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: flareView.NativeHandle()}},
		},
	})
	if err != nil {
		p.device.DestroyBindGroup(uniformBG)
		p.device.DestroyBindGroup(blurBG)
		p.device.DestroyBindGroup(maskBG)
		return fmt.Errorf("shading pipeline: create LUT bind group: %w", err)
	}

	res := &dispatchResources{device: p.device, bindGroups: []hal.BindGroup{uniformBG, blurBG, maskBG, lutBG}}
	defer res.cleanup()

	if err := p.encode(res, tileWidth, tileHeight); err != nil {
		return err
	}
	return p.submitAndWait(res)
}

func (p *Pipeline) encode(res *dispatchResources, tileWidth, tileHeight uint32) error {
	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "shading_pipeline_dispatch"})
	if err != nil {
		return fmt.Errorf("shading pipeline: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("shading_pipeline_dispatch"); err != nil {
		return fmt.Errorf("shading pipeline: begin encoding: %w", err)
	}

	wgX := (tileWidth + WorkgroupSize - 1) / WorkgroupSize
	wgY := (tileHeight + WorkgroupSize - 1) / WorkgroupSize

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "shading_pipeline_pass"})
	pass.SetPipeline(p.pipeline)
	for i, bg := range res.bindGroups {
		pass.SetBindGroup(uint32(i), bg, nil) //nolint:gosec // G115: i < 4
	}
	pass.Dispatch(wgX, wgY, 1)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("shading pipeline: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf
	return nil
}

func (p *Pipeline) submitAndWait(res *dispatchResources) error {
	fence, err := p.device.CreateFence()
	if err != nil {
		return fmt.Errorf("shading pipeline: create fence: %w", err)
	}
	res.fence = fence

	if err := p.queue.Submit([]hal.CommandBuffer{res.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("shading pipeline: submit: %w", err)
	}

	ok, err := p.device.Wait(fence, 1, pipelineFenceTimeout)
	if err != nil {
		return fmt.Errorf("shading pipeline: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("shading pipeline: %w after %v", context.DeadlineExceeded, pipelineFenceTimeout)
	}

	slogger().Debug("shading pipeline: tile dispatched")
	return nil
}

// copyPitchAlignment is the row-pitch alignment WebGPU (and DX12) requires
// for texture-to-buffer copies.
const copyPitchAlignment = 256

// ReadbackOutput copies a dispatched tile's output texture back to the host
// through a staging buffer, the same CopyTextureToBuffer + fence-wait +
// ReadBuffer sequence the rasterizer uses to read a resolved frame back for
// its own CPU-side callers.
func (p *Pipeline) ReadbackOutput(tex *GPUTexture) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if tex == nil {
		return nil, fmt.Errorf("shading pipeline: readback texture is nil")
	}

	width, height := uint32(tex.Width()), uint32(tex.Height()) //nolint:gosec // G115: texture dimensions are validated positive at creation
	bytesPerRow := width * uint32(tex.Format().BytesPerPixel())
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(height)

	staging, err := CreateStagingBuffer(p.device, stagingSize, false, "shading_pipeline_readback")
	if err != nil {
		return nil, fmt.Errorf("shading pipeline: create readback buffer: %w", err)
	}
	defer staging.Destroy()

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "shading_pipeline_readback"})
	if err != nil {
		return nil, fmt.Errorf("shading pipeline: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("shading_pipeline_readback"); err != nil {
		return nil, fmt.Errorf("shading pipeline: begin readback encoding: %w", err)
	}
	encoder.CopyTextureToBuffer(tex.Handle(), staging.Raw(), []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: height},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.Handle(), MipLevel: 0},
		Size:         hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("shading pipeline: end readback encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("shading pipeline: create readback fence: %w", err)
	}
	defer p.device.DestroyFence(fence)

	if err := p.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("shading pipeline: submit readback: %w", err)
	}
	ok, err := p.device.Wait(fence, 1, pipelineFenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("shading pipeline: wait for readback: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("shading pipeline: %w after %v", ErrDeviceLost, pipelineFenceTimeout)
	}

	padded := make([]byte, stagingSize)
	if err := p.queue.ReadBuffer(staging.Raw(), 0, padded); err != nil {
		return nil, fmt.Errorf("shading pipeline: read back staging buffer: %w", err)
	}

	if alignedBytesPerRow == bytesPerRow {
		return padded, nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(height))
	for row := uint32(0); row < height; row++ {
		srcOff := uint64(row) * uint64(alignedBytesPerRow)
		dstOff := uint64(row) * uint64(bytesPerRow)
		copy(tight[dstOff:dstOff+uint64(bytesPerRow)], padded[srcOff:srcOff+uint64(bytesPerRow)])
	}
	return tight, nil
}
