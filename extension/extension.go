// Package extension provides the Forge extension adapter for Cascade.
//
// It implements the forge.Extension interface to integrate Cascade
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.cascade" or "cascade" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	cascade "github.com/xraph/cascade"
	"github.com/xraph/cascade/store"
	"github.com/xraph/cascade/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "cascade"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Cascading configuration and entitlement resolution engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Cascade as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *cascade.Engine
	store      store.Store
	engineOpts []cascade.Option
}

// New creates a new Cascade Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Cascade instance.
// This is nil until Register is called.
func (e *Extension) Engine() *cascade.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the cascade engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts := e.buildEngineOpts()

	e.engine = cascade.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*cascade.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("cascade: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("cascade: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs cascade.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []cascade.Option {
	opts := make([]cascade.Option, 0, len(e.engineOpts)+3)

	if e.config.CSSPrefix != "" {
		opts = append(opts, cascade.WithCSSPrefix(e.config.CSSPrefix))
	}
	if e.config.DisableResolutionCache {
		opts = append(opts, cascade.WithoutResolutionCache())
	}
	if e.config.DisableMigrate {
		opts = append(opts, cascade.WithoutAutoMigrate())
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("cascade: configuration is required but not found in config files; " +
				"ensure 'extensions.cascade' or 'cascade' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("cascade: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("css_prefix", e.config.CSSPrefix),
		forge.F("disable_resolution_cache", e.config.DisableResolutionCache),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.cascade" first (namespaced pattern).
	if cm.IsSet("extensions.cascade") {
		if err := cm.Bind("extensions.cascade", &cfg); err == nil {
			e.Logger().Debug("cascade: loaded config from file",
				forge.F("key", "extensions.cascade"),
			)
			return cfg, true
		}
		e.Logger().Warn("cascade: failed to bind extensions.cascade config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "cascade" key.
	if cm.IsSet("cascade") {
		if err := cm.Bind("cascade", &cfg); err == nil {
			e.Logger().Debug("cascade: loaded config from file",
				forge.F("key", "cascade"),
			)
			return cfg, true
		}
		e.Logger().Warn("cascade: failed to bind cascade config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.CSSPrefix == "" {
		cfg.CSSPrefix = defaults.CSSPrefix
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableResolutionCache {
		yamlConfig.DisableResolutionCache = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.CSSPrefix == "" && programmaticConfig.CSSPrefix != "" {
		yamlConfig.CSSPrefix = programmaticConfig.CSSPrefix
	}

	return e.mergeWithDefaults(yamlConfig)
}
