// Package compute defines the latency and synchronization backend that
// feature plugins use to pace frames and observe GPU progress.
//
// The [Interface] abstracts over driver-provided implementations and
// the in-process [Tracker] fallback. Drivers that can report real GPU
// progress implement [Provider]; when a driver does not, the runtime
// wires a Tracker to submission and presentation hooks so plugins still
// see a coherent frame timeline.
package compute

import (
	"github.com/gogpu/interpose/native"
)

// Marker identifies a point in the frame timeline reported by the
// application or the runtime.
type Marker uint32

const (
	// MarkerSimulationStart marks the start of CPU simulation for a frame.
	MarkerSimulationStart Marker = iota

	// MarkerSimulationEnd marks the end of CPU simulation.
	MarkerSimulationEnd

	// MarkerRenderSubmitStart marks the start of render submission.
	MarkerRenderSubmitStart

	// MarkerRenderSubmitEnd marks the end of render submission.
	MarkerRenderSubmitEnd

	// MarkerPresentStart marks the start of presentation.
	MarkerPresentStart

	// MarkerPresentEnd marks the end of presentation.
	MarkerPresentEnd

	// MarkerInputSample marks when input was sampled for a frame.
	MarkerInputSample

	// MarkerTriggerFlash requests a latency flash indicator.
	MarkerTriggerFlash

	// MarkerLatencyPing is a latency measurement ping from input hardware.
	MarkerLatencyPing

	// MarkerCameraConstructed marks when the frame's camera data is final.
	MarkerCameraConstructed

	markerCount
)

// String returns the marker name.
func (m Marker) String() string {
	switch m {
	case MarkerSimulationStart:
		return "simulation-start"
	case MarkerSimulationEnd:
		return "simulation-end"
	case MarkerRenderSubmitStart:
		return "render-submit-start"
	case MarkerRenderSubmitEnd:
		return "render-submit-end"
	case MarkerPresentStart:
		return "present-start"
	case MarkerPresentEnd:
		return "present-end"
	case MarkerInputSample:
		return "input-sample"
	case MarkerTriggerFlash:
		return "trigger-flash"
	case MarkerLatencyPing:
		return "latency-ping"
	case MarkerCameraConstructed:
		return "camera-constructed"
	default:
		return "unknown"
	}
}

// SleepMode configures frame pacing.
type SleepMode struct {
	// LowLatencyMode enables latency-oriented pacing.
	LowLatencyMode bool

	// LowLatencyBoost requests maximum GPU clocks while pacing.
	LowLatencyBoost bool

	// MinIntervalMicros is the minimum frame interval. Zero disables
	// the frame rate cap.
	MinIntervalMicros uint32

	// UseMarkersToOptimize lets the backend shift pacing based on
	// simulation and render markers.
	UseMarkersToOptimize bool
}

// FrameReport holds the marker timestamps observed for one frame.
// Times are microseconds on a backend-defined monotonic clock; zero
// means the marker was never reported.
type FrameReport struct {
	FrameID           uint64
	InputSampleTime   uint64
	SimStartTime      uint64
	SimEndTime        uint64
	RenderSubmitStart uint64
	RenderSubmitEnd   uint64
	PresentStart      uint64
	PresentEnd        uint64
}

// LatencyReport holds per-frame marker timings, oldest first.
type LatencyReport struct {
	Frames []FrameReport
}

// State describes the latency backend's current condition.
type State struct {
	// LowLatencyAvailable reports whether pacing is supported.
	LowLatencyAvailable bool

	// FlashIndicatorDriverControlled reports whether the driver renders
	// the latency flash indicator itself. When false, trigger-flash
	// markers are dropped rather than forwarded.
	FlashIndicatorDriverControlled bool
}

// Interface is the latency and synchronization backend.
type Interface interface {
	// FinishedFrameIndex returns the index of the newest frame whose
	// presentation has completed.
	FinishedFrameIndex() uint32

	// CompletedValue returns the last signaled value of a timeline fence.
	CompletedValue(fence native.FenceID) (uint64, native.Result)

	// WaitCPUFence blocks until the fence reaches value.
	WaitCPUFence(fence native.FenceID, value uint64) native.Result

	// Sleep blocks to pace the given frame per the configured SleepMode.
	Sleep(frame uint32) native.Result

	// SetSleepMode reconfigures pacing.
	SetSleepMode(mode SleepMode) native.Result

	// SetMarker records a frame timeline marker.
	SetMarker(marker Marker, frame uint32) native.Result

	// State returns backend availability and indicator control.
	State() State

	// Report returns per-frame marker timings.
	Report() LatencyReport
}

// Provider is implemented by drivers that supply their own latency
// backend. When absent, the runtime falls back to an in-process
// [Tracker].
type Provider interface {
	Compute() Interface
}
