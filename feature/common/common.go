// Package common implements the core interposer plugin.
//
// The common plugin is priority 0: it starts before every feature and
// provides the infrastructure they share. It owns the resource tag
// store, publishes the compute backend and the evaluate registry
// through the parameter registry, and drives tag recycling from the
// presentation hook.
package common

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/param"
	"github.com/gogpu/interpose/plugin"
	"github.com/gogpu/interpose/tag"
)

// PluginName is the common plugin's registry name.
const PluginName = "common"

// EvaluateCallback processes one feature evaluation on a command buffer.
type EvaluateCallback func(cmd native.CommandBufferID, frame, viewport uint32, tags []tag.ResourceTag) native.Result

// EvaluateRegistry maps feature names to their evaluate callbacks.
// The common plugin publishes it under [param.KeyRegisterEvaluate];
// features register themselves at startup and the runtime dispatches
// application evaluate calls through it.
type EvaluateRegistry struct {
	mu        sync.RWMutex
	callbacks map[string]EvaluateCallback
}

// NewEvaluateRegistry creates an empty evaluate registry.
func NewEvaluateRegistry() *EvaluateRegistry {
	return &EvaluateRegistry{callbacks: make(map[string]EvaluateCallback)}
}

// Register installs a feature's evaluate callback, replacing any
// previous one.
func (r *EvaluateRegistry) Register(feature string, cb EvaluateCallback) {
	r.mu.Lock()
	if cb == nil {
		delete(r.callbacks, feature)
	} else {
		r.callbacks[feature] = cb
	}
	r.mu.Unlock()
}

// Dispatch runs a feature's evaluate callback.
func (r *EvaluateRegistry) Dispatch(feature string, cmd native.CommandBufferID, frame, viewport uint32, tags []tag.ResourceTag) native.Result {
	r.mu.RLock()
	cb := r.callbacks[feature]
	r.mu.RUnlock()

	if cb == nil {
		return native.ErrNotFound
	}
	return cb(cmd, frame, viewport, tags)
}

// Plugin is the common plugin.
type Plugin struct {
	log    *slog.Logger
	params *param.Registry

	comp    compute.Interface
	tracker *compute.Tracker // non-nil when the fallback tracker is ours
	store   *tag.Store
	evals   *EvaluateRegistry
	cloner  tag.Cloner

	presentCount  atomic.Uint32
	lastPublished atomic.Uint32
}

// Option configures the common plugin.
type Option func(*Plugin)

// WithCompute sets the latency backend to publish. Without it the
// plugin runs an in-process [compute.Tracker] fed from hooks.
func WithCompute(c compute.Interface) Option {
	return func(p *Plugin) { p.comp = c }
}

// WithCloner sets the resource cloner handed to the tag store.
func WithCloner(c tag.Cloner) Option {
	return func(p *Plugin) { p.cloner = c }
}

// New creates the common plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string { return PluginName }

// Priority returns 0: the common plugin starts first.
func (p *Plugin) Priority() int { return 0 }

// Config declares the shared device requirements every feature relies
// on.
func (p *Plugin) Config() plugin.FeatureConfig {
	return plugin.FeatureConfig{
		Feature:          PluginName,
		Priority:         0,
		DeviceExtensions: []string{"VK_KHR_timeline_semaphore", "VK_KHR_push_descriptor"},
		Features12:       []string{"timelineSemaphore", "descriptorIndexing", "bufferDeviceAddress"},
		Queues: []plugin.QueueNeed{
			{Family: "compute", Count: 1},
		},
		Hooks: []string{"DeviceWaitIdle", "QueueSubmit", "QueuePresent"},
	}
}

// Startup publishes the shared APIs and registers the bookkeeping
// hooks.
func (p *Plugin) Startup(h *plugin.Host) error {
	p.log = h.Log
	p.params = h.Params

	if p.comp == nil {
		p.tracker = compute.NewTracker()
		p.comp = p.tracker
		p.log.Info("common: no driver latency backend, using in-process tracker")
	}

	p.store = tag.NewStore(
		tag.WithFrameSource(func() (uint32, bool) {
			return h.Params.Uint32(param.KeyPresentFrame)
		}),
		tag.WithCloner(p.cloner),
		tag.WithLogger(h.Log),
	)
	p.evals = NewEvaluateRegistry()

	h.Params.Set(param.KeyComputeAPI, p.comp)
	h.Params.Set(param.KeyTagAPI, p.store)
	h.Params.Set(param.KeyRegisterEvaluate, p.evals)

	h.Hooks.Register(PluginName, p.Priority(), hook.DeviceWaitIdleBefore(p.onDeviceWaitIdle))
	h.Hooks.Register(PluginName, p.Priority(), hook.QueuePresentAfter(p.onPresent))
	if p.tracker != nil {
		h.Hooks.Register(PluginName, p.Priority(), hook.QueueSubmitBefore(p.onSubmit))
	}
	return nil
}

// Shutdown withdraws the published APIs and drains the tag store.
func (p *Plugin) Shutdown() {
	if p.params != nil {
		p.params.Delete(param.KeyComputeAPI)
		p.params.Delete(param.KeyTagAPI)
		p.params.Delete(param.KeyRegisterEvaluate)
	}
	if p.store != nil {
		p.store.Close()
	}
}

// Store returns the plugin's tag store. Nil before Startup.
func (p *Plugin) Store() *tag.Store { return p.store }

// Compute returns the published latency backend. Nil before Startup.
func (p *Plugin) Compute() compute.Interface { return p.comp }

// onPresent advances the present frame and recycles old tags.
//
// The frame counter is published under KeyPresentFrame only while no
// other writer maintains it: a latency plugin publishing the
// application's own frame indices takes precedence, since those are
// what the tag store keys on.
func (p *Plugin) onPresent(queue native.QueueID, info *native.PresentInfo, result native.Result) native.Result {
	frame := p.presentCount.Add(1)

	cur, ok := p.params.Uint32(param.KeyPresentFrame)
	if !ok || cur == p.lastPublished.Load() {
		p.params.Set(param.KeyPresentFrame, frame)
		p.lastPublished.Store(frame)
	}

	if p.tracker != nil {
		p.tracker.NotePresent(frame)
	}
	p.store.RecycleTags()
	return native.Success
}

// onDeviceWaitIdle drains the tag store: after a full device drain no
// in-flight frame can still reference a tagged resource.
func (p *Plugin) onDeviceWaitIdle(device native.DeviceID, skip *bool) native.Result {
	p.store.Flush()
	return native.Success
}

// onSubmit advances the tracker's software fences for submitted work.
func (p *Plugin) onSubmit(queue native.QueueID, batches []native.SubmitInfo, skip *bool) native.Result {
	for _, b := range batches {
		if b.Fence.IsValid() {
			v, _ := p.tracker.CompletedValue(b.Fence)
			p.tracker.SignalFence(b.Fence, v+1)
		}
	}
	return native.Success
}

var _ plugin.Plugin = (*Plugin)(nil)
