// Package gpucore provides shared GPU resource descriptors for the shading
// pipeline: opaque resource IDs, buffer/texture formats and usages, bind
// group descriptors, and the CPU-side mirror of the WGSL uniform layouts
// consumed by the compute kernel in internal/gpu/shaders/pipeline.wgsl.
//
// The types here are backend-agnostic. internal/gpu binds them to a
// concrete GPU device via github.com/gogpu/wgpu; tests and the CPU
// reference path in colorscience use them without touching a GPU at all.
package gpucore
