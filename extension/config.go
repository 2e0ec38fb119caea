package extension

import "time"

// Config holds the payroute extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.payroute" or "payroute" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// HealthSweepInterval is how frequently the background health sweep
	// re-derives account health from usage counters (default: 5m).
	// Only takes effect when a scheduler is wired into the engine.
	HealthSweepInterval time.Duration `json:"health_sweep_interval" mapstructure:"health_sweep_interval" yaml:"health_sweep_interval"`

	// DefaultCurrency is the ISO currency code assigned to accounts created
	// without one (default: "usd").
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency" yaml:"default_currency"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HealthSweepInterval: 5 * time.Minute,
		DefaultCurrency:     "usd",
	}
}
