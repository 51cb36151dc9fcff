package interpose

import (
	"log/slog"

	"github.com/gogpu/interpose/native"
	"github.com/gogpu/interpose/plugin"
	"github.com/gogpu/interpose/tag"
)

// Option configures a Runtime.
type Option func(*config)

type config struct {
	driverName string
	driver     native.Driver
	plugins    []plugin.Plugin
	cloner     tag.Cloner
	log        *slog.Logger
}

// WithDriver selects a registered driver by name. Without this option
// the runtime takes the best registered driver.
func WithDriver(name string) Option {
	return func(c *config) { c.driverName = name }
}

// WithDriverInstance supplies a driver directly, bypassing the
// registry. The runtime still calls Init on it.
func WithDriverInstance(d native.Driver) Option {
	return func(c *config) { c.driver = d }
}

// WithPlugin loads an additional plugin. The bundled common plugin is
// always loaded first; order among added plugins follows their
// priorities.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *config) { c.plugins = append(c.plugins, p) }
}

// WithCloner supplies the resource cloner the tag store uses for
// volatile tag copies.
func WithCloner(cl tag.Cloner) Option {
	return func(c *config) { c.cloner = cl }
}

// WithLogger sets the runtime logger. It also becomes the process
// logger, as if SetLogger had been called.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}
