package extension

import (
	cascade "github.com/xraph/cascade"
	"github.com/xraph/cascade/plugin"
	"github.com/xraph/cascade/store"
)

// Option configures the Cascade Forge extension.
type Option func(*Extension)

// WithStore sets the store for the cascade engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a cascade.Option through to the underlying engine.
func WithEngineOption(opt cascade.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a cascade plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, cascade.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate skips the store migration on start. The engine still
// starts and serves resolutions.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithCSSPrefix sets the prefix for rendered CSS custom properties.
func WithCSSPrefix(prefix string) Option {
	return func(e *Extension) { e.config.CSSPrefix = prefix }
}

// WithDisableResolutionCache turns off the resolution cache.
func WithDisableResolutionCache() Option {
	return func(e *Extension) { e.config.DisableResolutionCache = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
