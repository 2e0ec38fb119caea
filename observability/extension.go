// Package observability provides a metrics extension for the routing engine
// that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/payroute/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated  = (*MetricsExtension)(nil)
	_ plugin.OnAccountUpdated  = (*MetricsExtension)(nil)
	_ plugin.OnAccountSelected = (*MetricsExtension)(nil)
	_ plugin.OnSelectionFailed = (*MetricsExtension)(nil)
	_ plugin.OnOutcomeRecorded = (*MetricsExtension)(nil)
	_ plugin.OnLimitExceeded   = (*MetricsExtension)(nil)
	_ plugin.OnUsageReset      = (*MetricsExtension)(nil)
	_ plugin.OnHealthChanged   = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted  = (*MetricsExtension)(nil)
	_ plugin.OnScopeDenied     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track routing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountCreated Counter
	AccountUpdated Counter

	// Routing metrics
	SelectionSuccess Counter
	SelectionBackup  Counter
	SelectionFailed  Counter
	SelectionRejects Histogram

	// Outcome metrics
	OutcomeSuccess Counter
	OutcomeFailure Counter
	OutcomeVolume  Counter
	LimitExceeded  Counter

	// Usage metrics
	UsageReset         Counter
	UsageResetAccounts Histogram

	// Health metrics
	HealthChanged Counter
	HealthDown    Counter
	SweepDuration Histogram
	SweepChecked  Histogram

	// Tenancy metrics
	ScopeDenied Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountCreated: factory.Counter("payroute.account.created"),
		AccountUpdated: factory.Counter("payroute.account.updated"),

		// Routing metrics
		SelectionSuccess: factory.Counter("payroute.selection.success"),
		SelectionBackup:  factory.Counter("payroute.selection.backup"),
		SelectionFailed:  factory.Counter("payroute.selection.failed"),
		SelectionRejects: factory.Histogram("payroute.selection.rejections"),

		// Outcome metrics
		OutcomeSuccess: factory.Counter("payroute.outcome.success"),
		OutcomeFailure: factory.Counter("payroute.outcome.failure"),
		OutcomeVolume:  factory.Counter("payroute.outcome.volume"),
		LimitExceeded:  factory.Counter("payroute.limit.exceeded"),

		// Usage metrics
		UsageReset:         factory.Counter("payroute.usage.reset"),
		UsageResetAccounts: factory.Histogram("payroute.usage.reset.accounts"),

		// Health metrics
		HealthChanged: factory.Counter("payroute.health.changed"),
		HealthDown:    factory.Counter("payroute.health.down"),
		SweepDuration: factory.Histogram("payroute.health.sweep.duration_ms"),
		SweepChecked:  factory.Histogram("payroute.health.sweep.checked"),

		// Tenancy metrics
		ScopeDenied: factory.Counter("payroute.scope.denied"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ interface{}) error {
	m.AccountCreated.Inc()
	return nil
}

// OnAccountUpdated implements plugin.OnAccountUpdated.
func (m *MetricsExtension) OnAccountUpdated(_ context.Context, _, _ interface{}) error {
	m.AccountUpdated.Inc()
	return nil
}

// OnAccountSelected implements plugin.OnAccountSelected.
func (m *MetricsExtension) OnAccountSelected(_ context.Context, _ interface{}, fromBackup bool) error {
	m.SelectionSuccess.Inc()
	if fromBackup {
		m.SelectionBackup.Inc()
	}
	return nil
}

// OnSelectionFailed implements plugin.OnSelectionFailed.
func (m *MetricsExtension) OnSelectionFailed(_ context.Context, _ string, rejections int) error {
	m.SelectionFailed.Inc()
	m.SelectionRejects.Observe(float64(rejections))
	return nil
}

// OnOutcomeRecorded implements plugin.OnOutcomeRecorded.
func (m *MetricsExtension) OnOutcomeRecorded(_ context.Context, _ string, succeeded bool, amount int64) error {
	if succeeded {
		m.OutcomeSuccess.Inc()
	} else {
		m.OutcomeFailure.Inc()
	}
	m.OutcomeVolume.Add(float64(amount))
	return nil
}

// OnLimitExceeded implements plugin.OnLimitExceeded.
func (m *MetricsExtension) OnLimitExceeded(_ context.Context, _, _ string, _, _ int64) error {
	m.LimitExceeded.Inc()
	return nil
}

// OnUsageReset implements plugin.OnUsageReset.
func (m *MetricsExtension) OnUsageReset(_ context.Context, _ string, accounts int64) error {
	m.UsageReset.Inc()
	m.UsageResetAccounts.Observe(float64(accounts))
	return nil
}

// OnHealthChanged implements plugin.OnHealthChanged.
func (m *MetricsExtension) OnHealthChanged(_ context.Context, _, _, newStatus string) error {
	m.HealthChanged.Inc()
	if newStatus == "down" {
		m.HealthDown.Inc()
	}
	return nil
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, checked int, elapsed time.Duration) error {
	m.SweepChecked.Observe(float64(checked))
	m.SweepDuration.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnScopeDenied implements plugin.OnScopeDenied.
func (m *MetricsExtension) OnScopeDenied(_ context.Context, _, _, _ string) error {
	m.ScopeDenied.Inc()
	return nil
}
