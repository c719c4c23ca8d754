//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
)

// GPUInfo describes the adapter selected for the shading pipeline.
type GPUInfo struct {
	Name       string
	Vendor     string
	DeviceType gputypes.DeviceType
	Backend    gputypes.Backend
	Driver     string
}

// String returns a human-readable description of the GPU.
func (g *GPUInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", g.Name, g.DeviceType, g.Backend)
}

func getGPUInfo(adapterID core.AdapterID) (*GPUInfo, error) {
	info, err := core.GetAdapterInfo(adapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get adapter info: %w", err)
	}

	return &GPUInfo{
		Name:       info.Name,
		Vendor:     info.Vendor,
		DeviceType: info.DeviceType,
		Backend:    info.Backend,
		Driver:     info.Driver,
	}, nil
}

func logGPUInfo(adapterID core.AdapterID) {
	info, err := getGPUInfo(adapterID)
	if err != nil {
		slogger().Warn("failed to get GPU info", "error", err)
		return
	}

	slogger().Info("selected GPU", "name", info.Name, "type", info.DeviceType, "backend", info.Backend)
	if info.Driver != "" {
		slogger().Info("GPU driver", "driver", info.Driver)
	}
}

// createDevice creates a logical device from an adapter, requesting the
// limits the shading pipeline's bind group layouts need (four bind groups,
// storage textures, and a uniform buffer sized for PipelineUniformGPU).
func createDevice(adapterID core.AdapterID, label string) (core.DeviceID, error) {
	desc := &gputypes.DeviceDescriptor{
		Label:            label,
		RequiredFeatures: nil,
		RequiredLimits:   gputypes.DefaultLimits(),
	}

	deviceID, err := core.RequestDevice(adapterID, desc)
	if err != nil {
		return core.DeviceID{}, fmt.Errorf("failed to create device: %w", err)
	}

	return deviceID, nil
}

func getDeviceQueue(deviceID core.DeviceID) (core.QueueID, error) {
	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		return core.QueueID{}, fmt.Errorf("failed to get device queue: %w", err)
	}
	return queueID, nil
}

func releaseDevice(deviceID core.DeviceID) error {
	if deviceID.IsZero() {
		return nil
	}
	if err := core.DeviceDrop(deviceID); err != nil {
		return fmt.Errorf("failed to release device: %w", err)
	}
	return nil
}

func releaseAdapter(adapterID core.AdapterID) error {
	if adapterID.IsZero() {
		return nil
	}
	if err := core.AdapterDrop(adapterID); err != nil {
		return fmt.Errorf("failed to release adapter: %w", err)
	}
	return nil
}

// CheckDeviceLimits fetches the device's limits and logs the maximum 2D
// texture dimension and buffer size. It does not compare them against the
// compute kernel's needs; it returns an error only when the limits cannot
// be fetched.
func CheckDeviceLimits(deviceID core.DeviceID) error {
	limits, err := core.GetDeviceLimits(deviceID)
	if err != nil {
		return fmt.Errorf("failed to get device limits: %w", err)
	}

	slogger().Debug("device limits",
		"max_texture_dimension_2d", limits.MaxTextureDimension2D,
		"max_buffer_size", limits.MaxBufferSize,
	)

	return nil
}
