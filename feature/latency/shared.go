package latency

import (
	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/shared"
)

// SharedDataType names the latency plugin's shared structure.
const SharedDataType = "latency.shared"

// SharedDataVersion is the newest shared structure layout.
//
// Version history:
//
//	v1: SetMarker
//	v2: GetCameraData
//	v3: SetCameraDataFence
const SharedDataVersion = 3

// CameraData is the per-frame camera state handed across plugins.
// Only storage and handoff happen here; consumers do their own math.
type CameraData struct {
	// Position is the camera world position.
	Position [3]float32

	// Forward, Up, Right are the camera basis vectors.
	Forward [3]float32
	Up      [3]float32
	Right   [3]float32

	// WorldToView and ViewToClip are row-major 4x4 matrices.
	WorldToView [16]float32
	ViewToClip  [16]float32
}

// SharedData is the latency plugin's shared structure. Fields are
// filled up to the negotiated version.
type SharedData struct {
	shared.Header

	// SetMarker reports a frame timeline marker. Since v1.
	SetMarker func(m compute.Marker, frame uint32) native.Result

	// GetCameraData returns a frame's camera data, waiting briefly for
	// the producer. Since v2.
	GetCameraData func(frame uint32) (CameraData, bool)

	// SetCameraDataFence installs the fence the producer signals as it
	// publishes camera data. Since v3.
	SetCameraDataFence func(fence native.FenceID)
}

// NewSharedDataRequest returns a request for the newest layout this
// package knows.
func NewSharedDataRequest() *SharedData {
	return &SharedData{Header: shared.Header{Type: SharedDataType, Version: SharedDataVersion}}
}

// provider fills SharedData requests against this plugin instance.
func (p *Plugin) provideSharedData(req any) shared.Status {
	d, ok := req.(*SharedData)
	if !ok {
		return shared.StatusInvalidRequest
	}
	if s := d.Negotiate(SharedDataType, SharedDataVersion); s != shared.StatusOk {
		return s
	}

	d.SetMarker = p.SetMarker
	if d.Header.Version >= 2 {
		d.GetCameraData = p.GetCameraData
	}
	if d.Header.Version >= 3 {
		d.SetCameraDataFence = p.SetCameraDataFence
	}
	return shared.StatusOk
}
