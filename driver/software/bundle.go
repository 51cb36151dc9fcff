package software

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// softDevice is the opaque device handle the bundle hands out.
type softDevice struct{}

type softQueue struct{}

type softAdapter struct{}

// bundle exposes the in-memory device through the shared GPU context
// interfaces so library consumers can ride the interposed device.
type bundle struct{}

func (bundle) Device() gpucontext.Device             { return softDevice{} }
func (bundle) Queue() gpucontext.Queue               { return softQueue{} }
func (bundle) Adapter() gpucontext.Adapter           { return softAdapter{} }
func (bundle) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

func (bundle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: "software",
		Type: gpucontext.AdapterTypeSoftware,
	}
}

// DeviceBundle returns a shared device context for the in-memory
// device. The runtime publishes it after device creation.
func (d *Driver) DeviceBundle() gpucontext.DeviceProvider {
	return bundle{}
}

var _ gpucontext.DeviceProvider = bundle{}
