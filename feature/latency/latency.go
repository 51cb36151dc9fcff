// Package latency implements the frame pacing and latency plugin.
//
// The plugin forwards frame timeline markers to the compute backend,
// paces frames through its sleep API, stores per-frame camera data for
// downstream features, and keeps the present-frame and current-frame
// parameters up to date for the rest of the runtime.
package latency

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/param"
	"github.com/gogpu/interpose/plugin"
	"github.com/gogpu/interpose/shared"
)

// PluginName is the latency plugin's registry name.
const PluginName = "latency"

// cameraRingSize is how many frames of camera data stay available.
const cameraRingSize = 16

// ErrComputeUnavailable indicates the compute backend was not published
// when the plugin started.
var ErrComputeUnavailable = errors.New("latency: compute API not published, check that the common plugin initialized")

// Mode selects the pacing behavior.
type Mode uint32

const (
	// ModeOff disables pacing.
	ModeOff Mode = iota

	// ModeLowLatency paces frames for minimal latency.
	ModeLowLatency

	// ModeLowLatencyBoost additionally requests maximum GPU clocks.
	ModeLowLatencyBoost
)

// Options configures the latency plugin at runtime.
type Options struct {
	// Mode selects pacing behavior.
	Mode Mode

	// FrameLimitMicros caps the frame rate. Zero means uncapped.
	FrameLimitMicros uint32

	// UseMarkersToOptimize lets the backend use simulation and render
	// markers to place sleeps.
	UseMarkersToOptimize bool
}

// State describes the plugin's view of the backend.
type State struct {
	// LowLatencyAvailable reports whether pacing works here.
	LowLatencyAvailable bool

	// FlashIndicatorDriverControlled reports whether trigger-flash
	// markers are forwarded to the driver.
	FlashIndicatorDriverControlled bool

	// Report holds the backend's per-frame marker timings.
	Report compute.LatencyReport
}

// Plugin is the latency plugin.
type Plugin struct {
	log    *slog.Logger
	params *param.Registry
	comp   compute.Interface

	camera      *cameraRing[CameraData]
	policy      TimeoutPolicy
	cameraFence atomic.Uint64 // native.FenceID of the producer fence

	// appMarkers flips once the application sends its own present
	// markers; the present hooks then stop synthesizing them.
	appMarkers atomic.Bool
	autoFrame  atomic.Uint32
}

// Option configures the plugin.
type Option func(*Plugin)

// WithTimeoutPolicy overrides how long camera data lookups may block.
func WithTimeoutPolicy(p TimeoutPolicy) Option {
	return func(pl *Plugin) { pl.policy = p }
}

// New creates the latency plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return PluginName }

// Priority returns the startup priority; after common.
func (p *Plugin) Priority() int { return 10 }

// Config declares the plugin's device requirements.
func (p *Plugin) Config() plugin.FeatureConfig {
	return plugin.FeatureConfig{
		Feature:          PluginName,
		Priority:         p.Priority(),
		DeviceExtensions: []string{"VK_NV_low_latency"},
		Hooks:            []string{"QueuePresent"},
	}
}

// Startup wires the plugin to the compute backend published by the
// common plugin.
func (p *Plugin) Startup(h *plugin.Host) error {
	comp, ok := param.As[compute.Interface](h.Params, param.KeyComputeAPI)
	if !ok || comp == nil {
		return ErrComputeUnavailable
	}

	p.log = h.Log
	p.params = h.Params
	p.comp = comp
	p.camera = newCameraRing[CameraData](cameraRingSize, p.policy, h.Log)
	p.appMarkers.Store(false)
	p.autoFrame.Store(0)
	p.cameraFence.Store(native.InvalidID)

	shared.Publish(h.Params, PluginName, p.provideSharedData)

	h.Hooks.Register(PluginName, p.Priority(), hook.QueuePresentBefore(p.onPresentBefore))
	h.Hooks.Register(PluginName, p.Priority(), hook.QueuePresentAfter(p.onPresentAfter))
	return nil
}

// Shutdown withdraws the shared-data provider.
func (p *Plugin) Shutdown() {
	if p.params != nil {
		shared.Unpublish(p.params, PluginName)
	}
	if p.camera != nil {
		p.camera.Reset()
	}
}

// SetMarker reports a frame timeline marker from the application.
func (p *Plugin) SetMarker(m compute.Marker, frame uint32) native.Result {
	if m == compute.MarkerPresentStart || m == compute.MarkerPresentEnd {
		p.appMarkers.Store(true)
	}
	return p.setMarker(m, frame)
}

// setMarker is the common marker path for application calls and the
// synthesized present markers.
func (p *Plugin) setMarker(m compute.Marker, frame uint32) native.Result {
	switch m {
	case compute.MarkerPresentStart:
		// The present marker drives tag recycling and the frame the
		// application should simulate next.
		p.params.Set(param.KeyPresentFrame, frame)
		p.params.Set(param.KeyCurrentFrame, p.comp.FinishedFrameIndex()+1)

	case compute.MarkerRenderSubmitStart:
		// Render submission must not start before the frame's camera
		// data is published.
		if fence := native.FenceID(p.cameraFence.Load()); fence.IsValid() {
			if v, r := p.comp.CompletedValue(fence); r.Ok() && v < uint64(frame) {
				p.comp.WaitCPUFence(fence, uint64(frame))
			}
		}

	case compute.MarkerLatencyPing:
		// Pings are measurement-only; nothing downstream consumes them.
		return native.Success

	case compute.MarkerTriggerFlash:
		if !p.comp.State().FlashIndicatorDriverControlled {
			return native.Success
		}
	}

	return p.comp.SetMarker(m, frame)
}

// Sleep paces the given frame.
func (p *Plugin) Sleep(frame uint32) native.Result {
	return p.comp.Sleep(frame)
}

// SetOptions reconfigures pacing.
func (p *Plugin) SetOptions(o Options) native.Result {
	return p.comp.SetSleepMode(compute.SleepMode{
		LowLatencyMode:       o.Mode != ModeOff,
		LowLatencyBoost:      o.Mode == ModeLowLatencyBoost,
		MinIntervalMicros:    o.FrameLimitMicros,
		UseMarkersToOptimize: o.UseMarkersToOptimize,
	})
}

// State returns pacing availability and the latency report.
func (p *Plugin) State() State {
	cs := p.comp.State()
	return State{
		LowLatencyAvailable:            cs.LowLatencyAvailable,
		FlashIndicatorDriverControlled: cs.FlashIndicatorDriverControlled,
		Report:                         p.comp.Report(),
	}
}

// SetCameraData publishes camera data for a frame.
func (p *Plugin) SetCameraData(frame uint32, data CameraData) {
	p.camera.Insert(frame, data)
}

// GetCameraData returns a frame's camera data, waiting per the timeout
// policy for a producer that has not caught up.
func (p *Plugin) GetCameraData(frame uint32) (CameraData, bool) {
	return p.camera.Get(frame)
}

// SetCameraDataFence installs the fence the camera data producer
// signals with each published frame.
func (p *Plugin) SetCameraDataFence(fence native.FenceID) {
	p.cameraFence.Store(uint64(fence))
}

// onPresentBefore synthesizes a present-start marker when the
// application does not drive markers itself.
func (p *Plugin) onPresentBefore(queue native.QueueID, info *native.PresentInfo, skip *bool) native.Result {
	if p.appMarkers.Load() {
		return native.Success
	}
	return p.setMarker(compute.MarkerPresentStart, p.autoFrame.Load()+1)
}

// onPresentAfter synthesizes the matching present-end marker.
func (p *Plugin) onPresentAfter(queue native.QueueID, info *native.PresentInfo, result native.Result) native.Result {
	if p.appMarkers.Load() {
		return native.Success
	}
	return p.setMarker(compute.MarkerPresentEnd, p.autoFrame.Add(1))
}

var _ plugin.Plugin = (*Plugin)(nil)
