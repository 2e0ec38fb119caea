// Package account defines the merchant account model: the configured
// destination a transaction can be routed to, together with its limits,
// rolling usage counters, derived health, and routing metadata.
package account

import (
	"time"

	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/types"
)

// Status represents a merchant account's administrative lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusDisabled  Status = "DISABLED"
)

// Environment distinguishes sandbox from production accounts.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// HealthStatus is the derived health of an account.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// MerchantAccount is a configured processing destination owned by a company.
// Usage is mutated only by the counter ledger, Health only by the health
// monitor; Limits and Routing change through administrative updates.
type MerchantAccount struct {
	types.Entity
	ID          id.AccountID      `json:"id"`
	CompanyID   id.CompanyID      `json:"company_id"`
	Name        string            `json:"name"`
	Status      Status            `json:"status"`
	Environment Environment       `json:"environment"`
	Currency    string            `json:"currency"`
	Limits      Limits            `json:"limits"`
	Usage       UsageCounters     `json:"usage"`
	Health      Health            `json:"health"`
	Routing     RoutingConfig     `json:"routing"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// VelocityWindow is a sliding window with its own ceilings, independent of
// calendar periods.
type VelocityWindow struct {
	Window    time.Duration `json:"window"`
	MaxCount  int64         `json:"max_count,omitempty"`
	MaxAmount *types.Money  `json:"max_amount,omitempty"`
}

// Limits holds the per-account admission-control configuration.
// Min/max transaction amount are always set (DefaultLimits fills a safe
// range); every ceiling is optional and nil means "no limit".
type Limits struct {
	MinTransactionAmount types.Money `json:"min_transaction_amount"`
	MaxTransactionAmount types.Money `json:"max_transaction_amount"`

	DailyTransactionLimit   *int64 `json:"daily_transaction_limit,omitempty"`
	WeeklyTransactionLimit  *int64 `json:"weekly_transaction_limit,omitempty"`
	MonthlyTransactionLimit *int64 `json:"monthly_transaction_limit,omitempty"`
	YearlyTransactionLimit  *int64 `json:"yearly_transaction_limit,omitempty"`

	DailyVolumeLimit   *types.Money `json:"daily_volume_limit,omitempty"`
	WeeklyVolumeLimit  *types.Money `json:"weekly_volume_limit,omitempty"`
	MonthlyVolumeLimit *types.Money `json:"monthly_volume_limit,omitempty"`
	YearlyVolumeLimit  *types.Money `json:"yearly_volume_limit,omitempty"`

	Velocity *VelocityWindow `json:"velocity,omitempty"`
}

// DefaultMaxTransactionAmount is the safe upper bound applied when no
// explicit maximum is configured: 100,000,000 smallest units ($1,000,000.00).
const DefaultMaxTransactionAmount int64 = 100_000_000

// DefaultLimits returns the safe default limit range for a currency:
// one smallest unit up to DefaultMaxTransactionAmount, no ceilings.
func DefaultLimits(currency string) Limits {
	return Limits{
		MinTransactionAmount: types.In(currency, 1),
		MaxTransactionAmount: types.In(currency, DefaultMaxTransactionAmount),
	}
}

// Validate checks the min ≤ max invariant.
func (l Limits) Validate() error {
	if l.MinTransactionAmount.Currency != l.MaxTransactionAmount.Currency {
		return ErrCurrencyMismatch
	}
	if l.MaxTransactionAmount.Amount < l.MinTransactionAmount.Amount {
		return ErrLimitRange
	}
	return nil
}

// ValidateCurrency checks that every monetary ceiling is denominated in the
// account's currency. Mixed-currency limits would make counter comparisons
// meaningless, so they are rejected at configuration time.
func (l Limits) ValidateCurrency(currency string) error {
	if l.MinTransactionAmount.Currency != currency || l.MaxTransactionAmount.Currency != currency {
		return ErrCurrencyMismatch
	}
	for _, m := range []*types.Money{l.DailyVolumeLimit, l.WeeklyVolumeLimit, l.MonthlyVolumeLimit, l.YearlyVolumeLimit} {
		if m != nil && m.Currency != currency {
			return ErrCurrencyMismatch
		}
	}
	if l.Velocity != nil && l.Velocity.MaxAmount != nil && l.Velocity.MaxAmount.Currency != currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// UsageCounters are the rolling per-period counters for one account.
// Mutated only through the store's atomic outcome application; the invariant
// TodaySuccessCount + TodayFailureCount == TodayCount holds at all times.
type UsageCounters struct {
	TodayCount        int64       `json:"today_count"`
	TodayVolume       types.Money `json:"today_volume"`
	TodaySuccessCount int64       `json:"today_success_count"`
	TodayFailureCount int64       `json:"today_failure_count"`

	WeekCount   int64       `json:"week_count"`
	WeekVolume  types.Money `json:"week_volume"`
	MonthCount  int64       `json:"month_count"`
	MonthVolume types.Money `json:"month_volume"`
	YearCount   int64       `json:"year_count"`
	YearVolume  types.Money `json:"year_volume"`

	// Velocity window state, rolled over inside the same atomic update
	// that advances the calendar counters.
	WindowCount     int64       `json:"window_count"`
	WindowVolume    types.Money `json:"window_volume"`
	WindowStartedAt time.Time   `json:"window_started_at"`

	LastTransactionAt time.Time `json:"last_transaction_at"`
	UsageResetAt      time.Time `json:"usage_reset_at"`
}

// Health is derived from the usage counters; callers never set it directly.
type Health struct {
	Status          HealthStatus `json:"status"`
	SuccessRate     float64      `json:"success_rate"` // 0–100
	AvgLatencyMs    float64      `json:"avg_latency_ms"`
	LastHealthCheck time.Time    `json:"last_health_check"`
	LastError       string       `json:"last_error,omitempty"`
}

// RoutingConfig controls how the selector orders and weighs this account.
type RoutingConfig struct {
	Priority     int         `json:"priority"` // lower = preferred
	Weight       int64       `json:"weight"`   // relative share within a priority tier
	IsDefault    bool        `json:"is_default"`
	IsBackupOnly bool        `json:"is_backup_only"`
	PoolIDs      []id.PoolID `json:"pool_ids,omitempty"`
}

// ListOpts controls account listing.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
