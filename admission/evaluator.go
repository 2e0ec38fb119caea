// Package admission decides whether a prospective transaction fits within a
// merchant account's configured limits given its current usage counters.
//
// Evaluate is a pure function: it reads limits and counters, mutates nothing,
// and leaves counter updates to the ledger. The same evaluation runs twice per
// transaction — once during candidate selection and once at commit time, so a
// counter that moved between the two is caught before it is exceeded.
package admission

import (
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/types"
)

// LimitType names the limit a rejection was caused by.
type LimitType string

const (
	LimitCurrency LimitType = "currencyMismatch"

	LimitMinAmount LimitType = "minTransactionAmount"
	LimitMaxAmount LimitType = "maxTransactionAmount"

	LimitDailyCount   LimitType = "dailyTransactionLimit"
	LimitWeeklyCount  LimitType = "weeklyTransactionLimit"
	LimitMonthlyCount LimitType = "monthlyTransactionLimit"
	LimitYearlyCount  LimitType = "yearlyTransactionLimit"

	LimitDailyVolume   LimitType = "dailyVolumeLimit"
	LimitWeeklyVolume  LimitType = "weeklyVolumeLimit"
	LimitMonthlyVolume LimitType = "monthlyVolumeLimit"
	LimitYearlyVolume  LimitType = "yearlyVolumeLimit"

	LimitVelocityCount  LimitType = "velocityCountLimit"
	LimitVelocityAmount LimitType = "velocityAmountLimit"
)

// Result is the outcome of a limit evaluation. When Allowed is false the
// remaining fields identify the first limit that failed, in rule order.
type Result struct {
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	LimitType    LimitType `json:"limit_type,omitempty"`
	CurrentValue int64     `json:"current_value,omitempty"`
	LimitValue   int64     `json:"limit_value,omitempty"`
}

func allowed() Result { return Result{Allowed: true} }

func rejected(lt LimitType, reason string, current, limit int64) Result {
	return Result{
		Allowed:      false,
		Reason:       reason,
		LimitType:    lt,
		CurrentValue: current,
		LimitValue:   limit,
	}
}

// Evaluate checks amount against the account's limits and current counters.
// Rules run in a fixed order and the first failure wins: currency, then amount
// bounds, then count and volume ceilings from shortest to longest period, then
// the velocity window. A nil ceiling is skipped. now anchors the velocity window.
func Evaluate(limits account.Limits, usage account.UsageCounters, amount types.Money, now time.Time) Result {
	// A mismatched currency is a rejection, not a comparable amount.
	if amount.Currency != limits.MinTransactionAmount.Currency {
		return rejected(LimitCurrency, "transaction currency does not match account currency", 0, 0)
	}
	if amount.LessThan(limits.MinTransactionAmount) {
		return rejected(LimitMinAmount, "amount below minimum transaction amount",
			amount.Amount, limits.MinTransactionAmount.Amount)
	}
	if amount.GreaterThan(limits.MaxTransactionAmount) {
		return rejected(LimitMaxAmount, "amount above maximum transaction amount",
			amount.Amount, limits.MaxTransactionAmount.Amount)
	}

	// Count and volume ceilings, shortest period first. The prospective
	// transaction itself counts toward the ceiling: a transaction that would
	// push a counter past its limit is rejected.
	type countRule struct {
		lt      LimitType
		limit   *int64
		current int64
		reason  string
	}
	countRules := []countRule{
		{LimitDailyCount, limits.DailyTransactionLimit, usage.TodayCount, "daily transaction count limit reached"},
		{LimitWeeklyCount, limits.WeeklyTransactionLimit, usage.WeekCount, "weekly transaction count limit reached"},
		{LimitMonthlyCount, limits.MonthlyTransactionLimit, usage.MonthCount, "monthly transaction count limit reached"},
		{LimitYearlyCount, limits.YearlyTransactionLimit, usage.YearCount, "yearly transaction count limit reached"},
	}
	type volumeRule struct {
		lt      LimitType
		limit   *types.Money
		current types.Money
		reason  string
	}
	volumeRules := []volumeRule{
		{LimitDailyVolume, limits.DailyVolumeLimit, usage.TodayVolume, "daily volume limit exceeded"},
		{LimitWeeklyVolume, limits.WeeklyVolumeLimit, usage.WeekVolume, "weekly volume limit exceeded"},
		{LimitMonthlyVolume, limits.MonthlyVolumeLimit, usage.MonthVolume, "monthly volume limit exceeded"},
		{LimitYearlyVolume, limits.YearlyVolumeLimit, usage.YearVolume, "yearly volume limit exceeded"},
	}

	for i := range countRules {
		r := countRules[i]
		if r.limit != nil && r.current+1 > *r.limit {
			return rejected(r.lt, r.reason, r.current, *r.limit)
		}
		v := volumeRules[i]
		if v.limit != nil && v.current.Amount+amount.Amount > v.limit.Amount {
			return rejected(v.lt, v.reason, v.current.Amount, v.limit.Amount)
		}
	}

	if vel := limits.Velocity; vel != nil && vel.Window > 0 {
		// Window counters that have aged out count as zero; the ledger rolls
		// the stored window over on the next write.
		winCount, winVolume := usage.WindowCount, usage.WindowVolume.Amount
		if usage.WindowStartedAt.IsZero() || now.Sub(usage.WindowStartedAt) >= vel.Window {
			winCount, winVolume = 0, 0
		}
		if vel.MaxCount > 0 && winCount+1 > vel.MaxCount {
			return rejected(LimitVelocityCount, "velocity transaction count limit reached", winCount, vel.MaxCount)
		}
		if vel.MaxAmount != nil && winVolume+amount.Amount > vel.MaxAmount.Amount {
			return rejected(LimitVelocityAmount, "velocity amount limit exceeded", winVolume, vel.MaxAmount.Amount)
		}
	}

	return allowed()
}
