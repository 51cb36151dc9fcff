//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
)

// wgpuDevice adapts the core device to gpucontext.Device.
type wgpuDevice struct {
	d *Driver
}

// Poll is a no-op; command completion is tracked on the CPU side.
func (wgpuDevice) Poll(wait bool) {}

// Destroy is a no-op; the driver owns the core device.
func (wgpuDevice) Destroy() {}

// bundle exposes the driver's core objects through the shared GPU
// context interfaces.
type bundle struct {
	d *Driver
}

func (b bundle) Device() gpucontext.Device { return wgpuDevice{d: b.d} }

func (b bundle) Queue() gpucontext.Queue {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	return b.d.queue
}

func (b bundle) Adapter() gpucontext.Adapter {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	return b.d.adapter
}

func (b bundle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}

func (b bundle) AdapterInfo() gpucontext.AdapterInfo {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	return gpucontext.AdapterInfo{
		Name: b.d.deviceName,
		Type: mapAdapterType(b.d.adapterType),
	}
}

// mapAdapterType maps the wgpu adapter classification onto the shared
// context's vocabulary.
func mapAdapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeVirtualGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// DeviceBundle returns a shared device context for the wgpu device.
// The runtime publishes it after device creation.
func (d *Driver) DeviceBundle() gpucontext.DeviceProvider {
	return bundle{d: d}
}

// CoreDevice returns the underlying wgpu device handle.
func (d *Driver) CoreDevice() core.DeviceID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device
}

var _ gpucontext.DeviceProvider = bundle{}
