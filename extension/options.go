package extension

import (
	"time"

	payroute "github.com/xraph/payroute"
	"github.com/xraph/payroute/plugin"
	"github.com/xraph/payroute/store"
)

// Option configures the payroute Forge extension.
type Option func(*Extension)

// WithStore sets the store for the routing engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a payroute.Option through to the underlying engine.
func WithEngineOption(opt payroute.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, payroute.WithPlugin(p))
	}
}

// WithScheduler wires a cron scheduler so usage resets and health sweeps run
// automatically.
func WithScheduler(s payroute.Scheduler) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, payroute.WithScheduler(s))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithHealthSweepInterval sets the background health sweep cadence.
func WithHealthSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.HealthSweepInterval = d }
}

// WithDefaultCurrency sets the currency assigned to accounts created without one.
func WithDefaultCurrency(code string) Option {
	return func(e *Extension) { e.config.DefaultCurrency = code }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
