package interpose

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/interpose/compute"
	"github.com/gogpu/interpose/feature/common"
	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/param"
	"github.com/gogpu/interpose/plugin"
	"github.com/gogpu/interpose/tag"
)

// Sentinel errors for runtime construction.
var (
	// ErrIncompleteDriver indicates the driver returned a dispatch
	// table with nil entry points.
	ErrIncompleteDriver = errors.New("interpose: driver dispatch table is incomplete")
)

// bundleProvider is implemented by drivers that expose their device
// through the shared GPU context interfaces.
type bundleProvider interface {
	DeviceBundle() gpucontext.DeviceProvider
}

// Runtime is the interposition layer between an application and its
// graphics driver.
//
// All interposed entry points are methods on Runtime. They run the
// before hooks of loaded plugins, forward to the driver unless a hook
// skipped the call, then run the after hooks.
//
// Lifecycle operations hold the write half of mu; per-frame operations
// share the read half, so submits on one queue do not serialize
// against presents on another.
type Runtime struct {
	mu     sync.RWMutex
	closed bool

	log     *slog.Logger
	params  *param.Registry
	hooks   *hook.Table
	manager *plugin.Manager
	common  *common.Plugin

	driver native.Driver
	table  *native.DispatchTable
	caps   native.DeviceCapabilities

	instance native.InstanceID
	device   native.DeviceID

	tokens frameTokens
}

// New creates a runtime, initializes the selected driver and starts
// the plugins. The bundled common plugin always loads first.
func New(opts ...Option) (*Runtime, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log != nil {
		SetLogger(cfg.log)
	}
	log := Logger()

	drv := cfg.driver
	if drv == nil {
		if cfg.driverName != "" {
			drv = native.Get(cfg.driverName)
		} else {
			drv = native.Default()
		}
	}
	if drv == nil {
		return nil, fmt.Errorf("interpose: %w", native.ErrDriverNotAvailable)
	}
	if err := drv.Init(); err != nil {
		return nil, fmt.Errorf("interpose: driver %s: %w", drv.Name(), err)
	}

	table := drv.Table()
	if !table.Complete() {
		drv.Close()
		return nil, fmt.Errorf("%w: %s", ErrIncompleteDriver, drv.Name())
	}

	r := &Runtime{
		log:    log,
		params: param.NewRegistry(),
		hooks:  hook.NewTable(),
		driver: drv,
		table:  table,
		caps:   drv.Capabilities(),
	}
	r.manager = plugin.NewManager(&plugin.Host{
		Hooks:  r.hooks,
		Params: r.params,
		Log:    log,
	})

	var commonOpts []common.Option
	if p, ok := drv.(compute.Provider); ok {
		commonOpts = append(commonOpts, common.WithCompute(p.Compute()))
	}
	if cfg.cloner != nil {
		commonOpts = append(commonOpts, common.WithCloner(cfg.cloner))
	}
	r.common = common.New(commonOpts...)

	if err := r.manager.Add(r.common); err != nil {
		drv.Close()
		return nil, err
	}
	for _, p := range cfg.plugins {
		if err := r.manager.Add(p); err != nil {
			drv.Close()
			return nil, err
		}
	}
	if err := r.manager.InitializePlugins(); err != nil {
		drv.Close()
		return nil, err
	}

	log.Info("interpose: runtime ready",
		"driver", drv.Name(),
		"device", r.caps.DeviceName)
	return r, nil
}

// Close shuts the plugins down, releases the driver and clears the
// parameter registry. The runtime must not be used afterwards.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.manager.Shutdown()
	r.driver.Close()
	r.params.Clear()
	r.instance = native.InvalidID
	r.device = native.InvalidID
	r.closed = true
}

// Params returns the shared parameter registry.
func (r *Runtime) Params() *param.Registry { return r.params }

// Hooks returns the hook table.
func (r *Runtime) Hooks() *hook.Table { return r.hooks }

// Plugins returns the plugin manager.
func (r *Runtime) Plugins() *plugin.Manager { return r.manager }

// Driver returns the active driver.
func (r *Runtime) Driver() native.Driver { return r.driver }

// SetTag associates a resource with a tag type for a frame and
// viewport. Local tags stay invisible to tag lookups and are never
// cloned.
func (r *Runtime) SetTag(token *FrameToken, viewport uint32, t tag.ResourceTag, cmd native.CommandBufferID, local bool) native.Result {
	if token == nil {
		return native.ErrMissingInput
	}
	return r.common.Store().SetTag(token.Index(), viewport, t, cmd, local)
}

// GetTag returns the resource tagged for a frame and viewport.
func (r *Runtime) GetTag(typ tag.Type, token *FrameToken, viewport uint32, fallback []tag.ResourceTag, optional bool) (tag.CommonResource, native.Result) {
	if token == nil {
		return tag.CommonResource{}, native.ErrMissingInput
	}
	return r.common.Store().GetTag(typ, token.Index(), viewport, fallback, optional)
}

// EvaluateFeature runs a feature's evaluate callback for a frame.
// Features register through the evaluate registry the common plugin
// publishes.
func (r *Runtime) EvaluateFeature(feature string, cmd native.CommandBufferID, token *FrameToken, viewport uint32, tags []tag.ResourceTag) native.Result {
	if token == nil {
		return native.ErrMissingInput
	}
	evals, ok := param.As[*common.EvaluateRegistry](r.params, param.KeyRegisterEvaluate)
	if !ok || evals == nil {
		return native.ErrNotInitialized
	}
	return evals.Dispatch(feature, cmd, token.Index(), viewport, tags)
}
