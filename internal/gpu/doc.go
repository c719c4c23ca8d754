//go:build !nogpu

// Package gpu binds the shading pipeline's compute kernel to a real GPU
// device via the gogpu/wgpu Pure Go WebGPU implementation (zero CGO), which
// supports Vulkan, Metal, and DX12 depending on platform.
//
// # Architecture
//
// One compute kernel does all the work, in contrast to a rendering backend
// with dozens of specialized pipelines:
//
//	Uniform + textures -> bind groups -> compute pass -> dispatch -> fence
//
// Key components:
//
//   - Backend: instance/adapter/device/queue lifecycle
//   - GPUTexture: input, blur provider, mask, LUT, flare, and output textures
//   - MemoryManager: GPU texture memory with LRU eviction (configurable budget)
//   - CompileShaders: the embedded WGSL compute kernel, compiled via naga
//   - Pipeline: bind group layouts, pipeline layout, and the compute pipeline
//
// # Usage
//
//	p, err := gpu.NewPipeline()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
// # Memory management
//
// GPUTexture allocations can be tracked by a MemoryManager with a fixed
// budget; when the budget is exceeded, least-recently-used textures are
// evicted (blur providers and masks are the natural eviction candidates,
// since the dispatcher can re-request them from its caller).
//
// # Thread safety
//
// Backend and Pipeline are safe for concurrent use; internal synchronization
// is handled via mutexes. A single Pipeline should still only be dispatched
// from one goroutine at a time — the dispatcher package enforces that by
// holding its mutex for the whole dispatch.
//
// # Error handling
//
//   - ErrNotInitialized: Backend must be initialized before use
//   - ErrNoGPU: No compatible GPU adapter found
//   - ErrDeviceLost: GPU device became unusable
//
// higher-level resource and dispatch errors (missing textures, dimension
// mismatches, invalid curves, timeouts) are reported by the dispatcher
// package as pipelineerr values, not by this package directly.
package gpu
