// Package audithook bridges routing engine lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import the
// audit backend directly. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/payroute/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnAccountCreated  = (*Extension)(nil)
	_ plugin.OnAccountUpdated  = (*Extension)(nil)
	_ plugin.OnAccountSelected = (*Extension)(nil)
	_ plugin.OnSelectionFailed = (*Extension)(nil)
	_ plugin.OnOutcomeRecorded = (*Extension)(nil)
	_ plugin.OnLimitExceeded   = (*Extension)(nil)
	_ plugin.OnUsageReset      = (*Extension)(nil)
	_ plugin.OnHealthChanged   = (*Extension)(nil)
	_ plugin.OnSweepCompleted  = (*Extension)(nil)
	_ plugin.OnScopeDenied     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import an
// audit backend directly — callers inject the concrete recorder at wiring
// time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges routing engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, "", CategoryTenancy, nil,
		"event", "account_created",
	)
}

// OnAccountUpdated implements plugin.OnAccountUpdated.
func (e *Extension) OnAccountUpdated(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionAccountUpdated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, "", CategoryTenancy, nil,
		"event", "account_updated",
	)
}

// ──────────────────────────────────────────────────
// Routing hooks
// ──────────────────────────────────────────────────

// OnAccountSelected implements plugin.OnAccountSelected.
func (e *Extension) OnAccountSelected(ctx context.Context, _ interface{}, fromBackup bool) error {
	return e.record(ctx, ActionAccountSelected, SeverityInfo, OutcomeSuccess,
		ResourceAccount, "", CategoryRouting, nil,
		"event", "account_selected",
		"from_backup", fromBackup,
	)
}

// OnSelectionFailed implements plugin.OnSelectionFailed.
func (e *Extension) OnSelectionFailed(ctx context.Context, companyID string, rejections int) error {
	return e.record(ctx, ActionSelectionFailed, SeverityWarning, OutcomeFailure,
		ResourceCompany, companyID, CategoryRouting, nil,
		"company_id", companyID,
		"rejections", rejections,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnOutcomeRecorded implements plugin.OnOutcomeRecorded.
func (e *Extension) OnOutcomeRecorded(ctx context.Context, accountID string, succeeded bool, amount int64) error {
	outcome := OutcomeSuccess
	if !succeeded {
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionUsageRecorded, SeverityInfo, outcome,
		ResourceAccount, accountID, CategoryUsage, nil,
		"account_id", accountID,
		"succeeded", succeeded,
		"amount", amount,
	)
}

// OnLimitExceeded implements plugin.OnLimitExceeded.
func (e *Extension) OnLimitExceeded(ctx context.Context, accountID, limitType string, current, limit int64) error {
	return e.record(ctx, ActionLimitExceeded, SeverityWarning, OutcomeFailure,
		ResourceAccount, accountID, CategoryUsage, nil,
		"account_id", accountID,
		"limit_type", limitType,
		"current", current,
		"limit", limit,
	)
}

// OnUsageReset implements plugin.OnUsageReset.
func (e *Extension) OnUsageReset(ctx context.Context, period string, accounts int64) error {
	return e.record(ctx, ActionUsageReset, SeverityInfo, OutcomeSuccess,
		ResourceUsage, "", CategoryUsage, nil,
		"period", period,
		"accounts", accounts,
	)
}

// ──────────────────────────────────────────────────
// Health hooks
// ──────────────────────────────────────────────────

// OnHealthChanged implements plugin.OnHealthChanged.
func (e *Extension) OnHealthChanged(ctx context.Context, accountID, oldStatus, newStatus string) error {
	severity := SeverityInfo
	if newStatus == "down" {
		severity = SeverityCritical
	}
	return e.record(ctx, ActionHealthChanged, severity, OutcomeSuccess,
		ResourceAccount, accountID, CategoryHealth, nil,
		"account_id", accountID,
		"old_status", oldStatus,
		"new_status", newStatus,
	)
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, checked int, elapsed time.Duration) error {
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceHealth, "", CategoryHealth, nil,
		"checked", checked,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Tenancy hooks
// ──────────────────────────────────────────────────

// OnScopeDenied implements plugin.OnScopeDenied.
func (e *Extension) OnScopeDenied(ctx context.Context, subjectID, scope, companyID string) error {
	return e.record(ctx, ActionScopeDenied, SeverityWarning, OutcomeFailure,
		ResourceScope, companyID, CategoryAccess, nil,
		"subject_id", subjectID,
		"scope", scope,
		"company_id", companyID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
