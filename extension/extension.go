// Package extension provides the Forge extension adapter for payroute.
//
// It implements the forge.Extension interface to integrate the routing
// engine into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.payroute" or
// "payroute" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	payroute "github.com/xraph/payroute"
	"github.com/xraph/payroute/store"
	"github.com/xraph/payroute/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "payroute"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Merchant account routing engine for payment processing"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the payroute engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *payroute.Engine
	store      store.Store
	engineOpts []payroute.Option
}

// New creates a new payroute Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying payroute instance.
// This is nil until Register is called.
func (e *Extension) Engine() *payroute.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the routing engine, and registers it in the DI container.
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

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := payroute.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*payroute.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("payroute: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
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
		return errors.New("payroute: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs payroute.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []payroute.Option {
	opts := make([]payroute.Option, 0, len(e.engineOpts)+2)

	if e.config.HealthSweepInterval > 0 {
		opts = append(opts, payroute.WithHealthSweepInterval(e.config.HealthSweepInterval))
	}
	if e.config.DefaultCurrency != "" {
		opts = append(opts, payroute.WithDefaultCurrency(e.config.DefaultCurrency))
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
			return errors.New("payroute: configuration is required but not found in config files; " +
				"ensure 'extensions.payroute' or 'payroute' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("payroute: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("health_sweep_interval", e.config.HealthSweepInterval),
		forge.F("default_currency", e.config.DefaultCurrency),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.payroute" first (namespaced pattern).
	if cm.IsSet("extensions.payroute") {
		if err := cm.Bind("extensions.payroute", &cfg); err == nil {
			e.Logger().Debug("payroute: loaded config from file",
				forge.F("key", "extensions.payroute"),
			)
			return cfg, true
		}
		e.Logger().Warn("payroute: failed to bind extensions.payroute config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "payroute" key.
	if cm.IsSet("payroute") {
		if err := cm.Bind("payroute", &cfg); err == nil {
			e.Logger().Debug("payroute: loaded config from file",
				forge.F("key", "payroute"),
			)
			return cfg, true
		}
		e.Logger().Warn("payroute: failed to bind payroute config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.HealthSweepInterval == 0 {
		cfg.HealthSweepInterval = defaults.HealthSweepInterval
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = defaults.DefaultCurrency
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

	// Duration/string fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.HealthSweepInterval == 0 && programmaticConfig.HealthSweepInterval != 0 {
		yamlConfig.HealthSweepInterval = programmaticConfig.HealthSweepInterval
	}
	if yamlConfig.DefaultCurrency == "" && programmaticConfig.DefaultCurrency != "" {
		yamlConfig.DefaultCurrency = programmaticConfig.DefaultCurrency
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
