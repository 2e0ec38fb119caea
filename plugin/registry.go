package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onAccountCreated  []OnAccountCreated
	onAccountUpdated  []OnAccountUpdated
	onAccountSelected []OnAccountSelected
	onSelectionFailed []OnSelectionFailed
	onOutcomeRecorded []OnOutcomeRecorded
	onLimitExceeded   []OnLimitExceeded
	onUsageReset      []OnUsageReset
	onHealthChanged   []OnHealthChanged
	onSweepCompleted  []OnSweepCompleted
	onScopeDenied     []OnScopeDenied
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnAccountUpdated); ok {
		r.onAccountUpdated = append(r.onAccountUpdated, v)
	}
	if v, ok := p.(OnAccountSelected); ok {
		r.onAccountSelected = append(r.onAccountSelected, v)
	}
	if v, ok := p.(OnSelectionFailed); ok {
		r.onSelectionFailed = append(r.onSelectionFailed, v)
	}
	if v, ok := p.(OnOutcomeRecorded); ok {
		r.onOutcomeRecorded = append(r.onOutcomeRecorded, v)
	}
	if v, ok := p.(OnLimitExceeded); ok {
		r.onLimitExceeded = append(r.onLimitExceeded, v)
	}
	if v, ok := p.(OnUsageReset); ok {
		r.onUsageReset = append(r.onUsageReset, v)
	}
	if v, ok := p.(OnHealthChanged); ok {
		r.onHealthChanged = append(r.onHealthChanged, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}
	if v, ok := p.(OnScopeDenied); ok {
		r.onScopeDenied = append(r.onScopeDenied, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct interface{}) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountCreated(ctx, acct)
		}); err != nil {
			r.logger.Warn("plugin OnAccountCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitAccountUpdated emits an account updated event.
func (r *Registry) EmitAccountUpdated(ctx context.Context, oldAcct, newAcct interface{}) {
	r.mu.RLock()
	plugins := r.onAccountUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountUpdated(ctx, oldAcct, newAcct)
		}); err != nil {
			r.logger.Warn("plugin OnAccountUpdated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitAccountSelected emits an account selected event.
func (r *Registry) EmitAccountSelected(ctx context.Context, acct interface{}, fromBackup bool) {
	r.mu.RLock()
	plugins := r.onAccountSelected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountSelected(ctx, acct, fromBackup)
		}); err != nil {
			r.logger.Warn("plugin OnAccountSelected failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSelectionFailed emits a selection failed event.
func (r *Registry) EmitSelectionFailed(ctx context.Context, companyID string, rejections int) {
	r.mu.RLock()
	plugins := r.onSelectionFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSelectionFailed(ctx, companyID, rejections)
		}); err != nil {
			r.logger.Warn("plugin OnSelectionFailed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitOutcomeRecorded emits an outcome recorded event.
func (r *Registry) EmitOutcomeRecorded(ctx context.Context, accountID string, succeeded bool, amount int64) {
	r.mu.RLock()
	plugins := r.onOutcomeRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnOutcomeRecorded(ctx, accountID, succeeded, amount)
		}); err != nil {
			r.logger.Warn("plugin OnOutcomeRecorded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLimitExceeded emits a limit exceeded event.
func (r *Registry) EmitLimitExceeded(ctx context.Context, accountID, limitType string, current, limit int64) {
	r.mu.RLock()
	plugins := r.onLimitExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLimitExceeded(ctx, accountID, limitType, current, limit)
		}); err != nil {
			r.logger.Warn("plugin OnLimitExceeded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUsageReset emits a usage reset event.
func (r *Registry) EmitUsageReset(ctx context.Context, period string, accounts int64) {
	r.mu.RLock()
	plugins := r.onUsageReset
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageReset(ctx, period, accounts)
		}); err != nil {
			r.logger.Warn("plugin OnUsageReset failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitHealthChanged emits a health changed event.
func (r *Registry) EmitHealthChanged(ctx context.Context, accountID, oldStatus, newStatus string) {
	r.mu.RLock()
	plugins := r.onHealthChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnHealthChanged(ctx, accountID, oldStatus, newStatus)
		}); err != nil {
			r.logger.Warn("plugin OnHealthChanged failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, checked int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSweepCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSweepCompleted(ctx, checked, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSweepCompleted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitScopeDenied emits a scope denied event.
func (r *Registry) EmitScopeDenied(ctx context.Context, subjectID, scope, companyID string) {
	r.mu.RLock()
	plugins := r.onScopeDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnScopeDenied(ctx, subjectID, scope, companyID)
		}); err != nil {
			r.logger.Warn("plugin OnScopeDenied failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the routing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
