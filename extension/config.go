package extension

// Config holds the Cascade extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.cascade" or "cascade" keys).
type Config struct {
	// DisableMigrate skips the store migration on start, for deployments
	// that run migrations out of band. The engine still starts: tier
	// registry load and the platform-layer check run either way.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CSSPrefix is the prefix used when rendering resolved tokens as CSS
	// custom properties (default: "ej").
	CSSPrefix string `json:"css_prefix" mapstructure:"css_prefix" yaml:"css_prefix"`

	// DisableResolutionCache turns off the fingerprint-revalidated
	// resolution cache; every resolve then hits the store directly.
	DisableResolutionCache bool `json:"disable_resolution_cache" mapstructure:"disable_resolution_cache" yaml:"disable_resolution_cache"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CSSPrefix: "ej",
	}
}
