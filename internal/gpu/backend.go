//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
)

// BackendGPU is the identifier for the GPU backend.
const BackendGPU = "gpu"

// Package-level sentinel errors for the device/adapter lifecycle. Dispatch
// and resource errors specific to the shading pipeline are defined in
// pipelineerr; these are the lower-level wgpu-adjacent failures that
// pipelineerr wraps.
var (
	// ErrNoGPU is returned when no compatible GPU adapter can be found.
	ErrNoGPU = errors.New("gpu: no compatible GPU adapter available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("gpu: backend not initialized")

	// ErrDeviceLost is returned when the GPU device becomes unusable and
	// requires a fresh Backend to be initialized.
	ErrDeviceLost = errors.New("gpu: device lost")
)

// Backend owns the GPU instance, adapter, device, and queue used to compile
// and dispatch the shading pipeline's compute kernel.
type Backend struct {
	mu sync.RWMutex

	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID

	gpuInfo *GPUInfo

	initialized bool
}

// NewBackend creates a new GPU backend. The backend must be initialized
// with Init before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return BackendGPU
}

// Init creates the instance, requests an adapter, creates a device, and
// retrieves its queue. Init is idempotent: calling it on an already
// initialized backend is a no-op.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	desc := &gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
		Flags:    0,
	}
	b.instance = core.NewInstance(desc)

	adapterID, err := b.instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	b.adapter = adapterID

	logGPUInfo(adapterID)
	b.gpuInfo, _ = getGPUInfo(adapterID)

	deviceID, err := createDevice(adapterID, "shading-pipeline-device")
	if err != nil {
		return fmt.Errorf("device creation failed: %w", err)
	}
	b.device = deviceID

	queueID, err := getDeviceQueue(deviceID)
	if err != nil {
		_ = releaseDevice(deviceID)
		return fmt.Errorf("queue retrieval failed: %w", err)
	}
	b.queue = queueID

	b.initialized = true
	slogger().Info("gpu backend initialized", "gpu", b.gpuInfo)

	return nil
}

// Close releases all backend resources. The backend must not be used after
// Close is called.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	if !b.device.IsZero() {
		if err := releaseDevice(b.device); err != nil {
			slogger().Warn("error releasing device", "error", err)
		}
		b.device = core.DeviceID{}
	}

	if !b.adapter.IsZero() {
		if err := releaseAdapter(b.adapter); err != nil {
			slogger().Warn("error releasing adapter", "error", err)
		}
		b.adapter = core.AdapterID{}
	}

	b.instance = nil
	b.queue = core.QueueID{}
	b.gpuInfo = nil
	b.initialized = false

	slogger().Info("gpu backend closed")
}

// IsInitialized returns true if the backend has been initialized.
func (b *Backend) IsInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// GPUInfo returns information about the selected GPU, or nil if the
// backend is not initialized.
func (b *Backend) GPUInfo() *GPUInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gpuInfo
}

// Device returns the GPU device ID, or a zero ID if uninitialized.
func (b *Backend) Device() core.DeviceID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.device
}

// Queue returns the GPU queue ID, or a zero ID if uninitialized.
func (b *Backend) Queue() core.QueueID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue
}
