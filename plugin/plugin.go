// Package plugin provides an extensible plugin system for the routing engine.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a merchant account is created.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct interface{}) error
}

// OnAccountUpdated is called when a merchant account is updated.
type OnAccountUpdated interface {
	Plugin
	OnAccountUpdated(ctx context.Context, oldAcct, newAcct interface{}) error
}

// ──────────────────────────────────────────────────
// Routing hooks
// ──────────────────────────────────────────────────

// OnAccountSelected is called when routing selects an account for a
// transaction.
type OnAccountSelected interface {
	Plugin
	OnAccountSelected(ctx context.Context, acct interface{}, fromBackup bool) error
}

// OnSelectionFailed is called when routing finds no eligible account.
type OnSelectionFailed interface {
	Plugin
	OnSelectionFailed(ctx context.Context, companyID string, rejections int) error
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnOutcomeRecorded is called after a transaction outcome is folded into an
// account's counters.
type OnOutcomeRecorded interface {
	Plugin
	OnOutcomeRecorded(ctx context.Context, accountID string, succeeded bool, amount int64) error
}

// OnLimitExceeded is called when a commit-time limit check rejects a
// transaction.
type OnLimitExceeded interface {
	Plugin
	OnLimitExceeded(ctx context.Context, accountID, limitType string, current, limit int64) error
}

// OnUsageReset is called after a calendar period reset completes.
type OnUsageReset interface {
	Plugin
	OnUsageReset(ctx context.Context, period string, accounts int64) error
}

// ──────────────────────────────────────────────────
// Health hooks
// ──────────────────────────────────────────────────

// OnHealthChanged is called when an account transitions between health
// statuses.
type OnHealthChanged interface {
	Plugin
	OnHealthChanged(ctx context.Context, accountID, oldStatus, newStatus string) error
}

// OnSweepCompleted is called after a background health sweep finishes.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, checked int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Tenancy hooks
// ──────────────────────────────────────────────────

// OnScopeDenied is called when a caller is denied access to a company.
type OnScopeDenied interface {
	Plugin
	OnScopeDenied(ctx context.Context, subjectID, scope, companyID string) error
}
