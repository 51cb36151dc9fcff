// Package plugin manages feature plugin lifecycle.
//
// A [Plugin] packages one interposer feature: it declares its device
// requirements through a [FeatureConfig], registers hooks at startup,
// and publishes its APIs through the parameter registry. The [Manager]
// starts plugins in ascending priority order and shuts them down in
// reverse, so higher-priority plugins can rely on lower-priority ones
// (the common plugin, priority 0, is up first and down last).
package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gogpu/interpose/hook"
	"github.com/gogpu/interpose/param"
)

// Sentinel errors for plugin management.
var (
	// ErrPluginNotFound indicates the named plugin was never added.
	ErrPluginNotFound = errors.New("plugin: plugin not found")

	// ErrDuplicatePlugin indicates a plugin with the same name exists.
	ErrDuplicatePlugin = errors.New("plugin: duplicate plugin name")
)

// Host is what the runtime hands each plugin at startup.
// Plugins keep their state on themselves; the host carries only the
// shared infrastructure.
type Host struct {
	// Hooks is the dispatch hook table.
	Hooks *hook.Table

	// Params is the shared parameter registry.
	Params *param.Registry

	// Log is the runtime logger.
	Log *slog.Logger
}

// Plugin is one interposer feature.
type Plugin interface {
	// Name returns the unique plugin name, used as hook owner.
	Name() string

	// Priority orders startup; lower starts first. The common plugin
	// is priority 0 and must start before everything else.
	Priority() int

	// Config declares the plugin's device requirements.
	Config() FeatureConfig

	// Startup registers hooks and publishes APIs.
	Startup(h *Host) error

	// Shutdown releases what Startup acquired. Hook removal is handled
	// by the manager.
	Shutdown()
}

// pluginState tracks one managed plugin.
type pluginState struct {
	plugin  Plugin
	enabled bool
	started bool
}

// Manager owns the plugin set and its lifecycle.
type Manager struct {
	mu      sync.Mutex
	host    *Host
	plugins []*pluginState
}

// NewManager creates a manager that starts plugins against host.
func NewManager(host *Host) *Manager {
	if host.Log == nil {
		host.Log = slog.New(slog.DiscardHandler)
	}
	return &Manager{host: host}
}

// Add registers a plugin with the manager. Plugins are enabled by
// default and started by InitializePlugins.
func (m *Manager) Add(p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.plugins {
		if st.plugin.Name() == p.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
		}
	}
	m.plugins = append(m.plugins, &pluginState{plugin: p, enabled: true})
	return nil
}

// InitializePlugins starts all enabled plugins in ascending priority
// order.
//
// A startup failure of a priority-0 plugin aborts initialization and
// shuts down what already started. Any other failure disables that
// plugin and initialization continues: a missing optional feature must
// not take the application down.
func (m *Manager) InitializePlugins() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.plugins, func(i, j int) bool {
		return m.plugins[i].plugin.Priority() < m.plugins[j].plugin.Priority()
	})

	for _, st := range m.plugins {
		if !st.enabled || st.started {
			continue
		}
		name := st.plugin.Name()
		if err := st.plugin.Startup(m.host); err != nil {
			if st.plugin.Priority() == 0 {
				m.host.Log.Error("plugin: core plugin failed to start",
					"plugin", name, "error", err)
				m.shutdownLocked()
				return fmt.Errorf("plugin: starting %s: %w", name, err)
			}
			m.host.Log.Warn("plugin: disabled after startup failure",
				"plugin", name, "error", err)
			st.enabled = false
			m.host.Hooks.Unregister(name)
			continue
		}
		st.started = true
		m.host.Log.Info("plugin: started",
			"plugin", name, "priority", st.plugin.Priority())
	}
	return nil
}

// Shutdown stops all started plugins in descending priority order and
// removes their hooks.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownLocked()
}

func (m *Manager) shutdownLocked() {
	for i := len(m.plugins) - 1; i >= 0; i-- {
		st := m.plugins[i]
		if !st.started {
			continue
		}
		st.plugin.Shutdown()
		m.host.Hooks.Unregister(st.plugin.Name())
		st.started = false
	}
}

// SetEnabled enables or disables a plugin at runtime.
//
// Disabling a started plugin shuts it down and removes its hooks.
// Enabling a stopped plugin runs its Startup again.
func (m *Manager) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, st := range m.plugins {
		if st.plugin.Name() != name {
			continue
		}
		if enabled == st.enabled && enabled == st.started {
			return nil
		}
		if !enabled {
			if st.started {
				st.plugin.Shutdown()
				m.host.Hooks.Unregister(name)
				st.started = false
			}
			st.enabled = false
			return nil
		}
		st.enabled = true
		if !st.started {
			if err := st.plugin.Startup(m.host); err != nil {
				st.enabled = false
				m.host.Hooks.Unregister(name)
				return fmt.Errorf("plugin: restarting %s: %w", name, err)
			}
			st.started = true
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// IsEnabled reports whether the named plugin is enabled and running.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.plugins {
		if st.plugin.Name() == name {
			return st.enabled && st.started
		}
	}
	return false
}

// LoadedConfigs returns the configs of running plugins, in startup
// order. Disabled and failed plugins do not contribute requirements.
func (m *Manager) LoadedConfigs() []FeatureConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	configs := make([]FeatureConfig, 0, len(m.plugins))
	for _, st := range m.plugins {
		if st.enabled && st.started {
			configs = append(configs, st.plugin.Config())
		}
	}
	return configs
}

// PendingConfigs returns the configs of enabled plugins whether or not
// they started yet. The runtime uses this before InitializePlugins to
// aggregate device requirements.
func (m *Manager) PendingConfigs() []FeatureConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	configs := make([]FeatureConfig, 0, len(m.plugins))
	for _, st := range m.plugins {
		if st.enabled {
			configs = append(configs, st.plugin.Config())
		}
	}
	return configs
}
