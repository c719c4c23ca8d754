//go:build !nogpu

package gpu

import (
	_ "embed"
	"errors"

	"github.com/gogpu/wgpu/hal"
)

// pipelineShaderSource is the compute kernel implementing the shading
// pipeline's per-pixel operator stack (see internal/gpu/shaders/pipeline.wgsl).
//
//go:embed shaders/pipeline.wgsl
var pipelineShaderSource string

// GetPipelineShaderSource returns the embedded WGSL source, primarily for
// tests that lint or hash it without touching a device.
func GetPipelineShaderSource() string {
	return pipelineShaderSource
}

// CompileShaders compiles the pipeline kernel to SPIR-V via naga and creates
// a shader module on the given device.
func CompileShaders(device hal.Device) (hal.ShaderModule, error) {
	if pipelineShaderSource == "" {
		return nil, errors.New("pipeline shader source is empty")
	}

	spirv, err := CompileShaderToSPIRV(pipelineShaderSource)
	if err != nil {
		return nil, err
	}

	return CreateShaderModule(device, "shading-pipeline", spirv)
}

// EntryPoint is the compute entry point name the pipeline WGSL declares.
const EntryPoint = "main"

// WorkgroupSize is the compute kernel's declared @workgroup_size, matching
// the dispatcher's tiling (8x8 pixels per workgroup).
const WorkgroupSize = 8
