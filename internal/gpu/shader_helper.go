package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileShaderToSPIRV validates and lowers a WGSL source string to SPIR-V
// via naga, so a malformed kernel is rejected here rather than surfacing as
// an opaque device error the first time a compute pass runs it.
// CompileShaders calls this before ever handing SPIR-V to CreateShaderModule.
func CompileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shading pipeline kernel: %w", err)
	}

	// naga returns SPIR-V as little-endian bytes; hal.ShaderSource wants it
	// repacked into 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	return spirvCode, nil
}

// CreateShaderModule wraps compiled SPIR-V words in a hal.ShaderModule.
func CreateShaderModule(device hal.Device, label string, spirvCode []uint32) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			SPIRV: spirvCode,
		},
	})
}

// GPUResources bundles compiled-pipeline objects for teardown in one call:
// the shader module CompileShaders produced, the pipeline and
// bind group layouts built from it, and the compute pipelines it backs.
type GPUResources struct {
	Device         hal.Device
	ShaderModule   hal.ShaderModule
	PipelineLayout hal.PipelineLayout
	BindLayouts    []hal.BindGroupLayout
	Pipelines      []hal.ComputePipeline
}

// Destroy releases every resource in r against the device that created
// them, in dependency order (pipelines before the layouts and shader module
// they reference). A zero-value r.Device makes Destroy a no-op, so it is
// safe to call on a partially filled GPUResources.
func (r *GPUResources) Destroy() {
	if r.Device == nil {
		return
	}

	for _, p := range r.Pipelines {
		if p != nil {
			r.Device.DestroyComputePipeline(p)
		}
	}

	if r.PipelineLayout != nil {
		r.Device.DestroyPipelineLayout(r.PipelineLayout)
	}

	for _, l := range r.BindLayouts {
		if l != nil {
			r.Device.DestroyBindGroupLayout(l)
		}
	}

	if r.ShaderModule != nil {
		r.Device.DestroyShaderModule(r.ShaderModule)
	}
}
