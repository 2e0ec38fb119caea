package admission_test

import (
	"testing"
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/admission"
	"github.com/xraph/payroute/types"
)

func int64Ptr(v int64) *int64 { return &v }

func moneyPtr(m types.Money) *types.Money { return &m }

func baseLimits() account.Limits {
	return account.Limits{
		MinTransactionAmount: types.USD(100),
		MaxTransactionAmount: types.USD(100_000),
	}
}

func TestEvaluateAmountBounds(t *testing.T) {
	now := time.Now().UTC()
	limits := baseLimits()

	tests := []struct {
		name      string
		amount    types.Money
		allowed   bool
		limitType admission.LimitType
	}{
		{"below minimum", types.USD(99), false, admission.LimitMinAmount},
		{"exactly minimum", types.USD(100), true, ""},
		{"within range", types.USD(5000), true, ""},
		{"exactly maximum", types.USD(100_000), true, ""},
		{"above maximum", types.USD(100_001), false, admission.LimitMaxAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := admission.Evaluate(limits, account.UsageCounters{}, tt.amount, now)
			if res.Allowed != tt.allowed {
				t.Fatalf("Allowed: got %v, want %v (reason: %s)", res.Allowed, tt.allowed, res.Reason)
			}
			if !tt.allowed && res.LimitType != tt.limitType {
				t.Errorf("LimitType: got %s, want %s", res.LimitType, tt.limitType)
			}
		})
	}
}

func TestEvaluateCountCeilings(t *testing.T) {
	now := time.Now().UTC()

	limits := baseLimits()
	limits.DailyTransactionLimit = int64Ptr(10)

	// 9 of 10 used: the 10th transaction still fits.
	usage := account.UsageCounters{TodayCount: 9}
	if res := admission.Evaluate(limits, usage, types.USD(500), now); !res.Allowed {
		t.Fatalf("expected 10th transaction to be allowed, got %s", res.Reason)
	}

	// 10 of 10 used: the 11th is rejected.
	usage.TodayCount = 10
	res := admission.Evaluate(limits, usage, types.USD(500), now)
	if res.Allowed {
		t.Fatal("expected 11th transaction to be rejected")
	}
	if res.LimitType != admission.LimitDailyCount {
		t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitDailyCount)
	}
	if res.CurrentValue != 10 || res.LimitValue != 10 {
		t.Errorf("current/limit: got %d/%d, want 10/10", res.CurrentValue, res.LimitValue)
	}
}

func TestEvaluateVolumeCeilings(t *testing.T) {
	now := time.Now().UTC()

	limits := baseLimits()
	limits.DailyVolumeLimit = moneyPtr(types.USD(10_000))

	// Exactly filling the remaining headroom is allowed.
	usage := account.UsageCounters{TodayVolume: types.USD(9_000)}
	if res := admission.Evaluate(limits, usage, types.USD(1_000), now); !res.Allowed {
		t.Fatalf("expected exact fill to be allowed, got %s", res.Reason)
	}

	// One unit over is rejected.
	res := admission.Evaluate(limits, usage, types.USD(1_001), now)
	if res.Allowed {
		t.Fatal("expected over-limit volume to be rejected")
	}
	if res.LimitType != admission.LimitDailyVolume {
		t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitDailyVolume)
	}
}

func TestEvaluateRuleOrder(t *testing.T) {
	now := time.Now().UTC()

	// Both the daily count and the monthly volume would fail; the daily count
	// rule runs first and must name the rejection.
	limits := baseLimits()
	limits.DailyTransactionLimit = int64Ptr(5)
	limits.MonthlyVolumeLimit = moneyPtr(types.USD(1))

	usage := account.UsageCounters{
		TodayCount:  5,
		MonthVolume: types.USD(100),
	}

	res := admission.Evaluate(limits, usage, types.USD(500), now)
	if res.Allowed {
		t.Fatal("expected rejection")
	}
	if res.LimitType != admission.LimitDailyCount {
		t.Errorf("LimitType: got %s, want %s (first failing rule wins)", res.LimitType, admission.LimitDailyCount)
	}
}

func TestEvaluateWeeklyAndYearly(t *testing.T) {
	now := time.Now().UTC()

	limits := baseLimits()
	limits.WeeklyTransactionLimit = int64Ptr(100)
	limits.YearlyVolumeLimit = moneyPtr(types.USD(1_000_000))

	usage := account.UsageCounters{
		WeekCount:  100,
		YearVolume: types.USD(500_000),
	}

	res := admission.Evaluate(limits, usage, types.USD(500), now)
	if res.Allowed {
		t.Fatal("expected weekly count rejection")
	}
	if res.LimitType != admission.LimitWeeklyCount {
		t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitWeeklyCount)
	}

	usage.WeekCount = 0
	usage.YearVolume = types.USD(999_999_999)
	res = admission.Evaluate(limits, usage, types.USD(500), now)
	if res.Allowed {
		t.Fatal("expected yearly volume rejection")
	}
	if res.LimitType != admission.LimitYearlyVolume {
		t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitYearlyVolume)
	}
}

func TestEvaluateVelocityWindow(t *testing.T) {
	now := time.Now().UTC()

	limits := baseLimits()
	limits.Velocity = &account.VelocityWindow{
		Window:    time.Minute,
		MaxCount:  3,
		MaxAmount: moneyPtr(types.USD(1_000)),
	}

	t.Run("count within live window", func(t *testing.T) {
		usage := account.UsageCounters{
			WindowCount:     3,
			WindowVolume:    types.USD(100),
			WindowStartedAt: now.Add(-10 * time.Second),
		}
		res := admission.Evaluate(limits, usage, types.USD(200), now)
		if res.Allowed {
			t.Fatal("expected velocity count rejection")
		}
		if res.LimitType != admission.LimitVelocityCount {
			t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitVelocityCount)
		}
	})

	t.Run("amount within live window", func(t *testing.T) {
		usage := account.UsageCounters{
			WindowCount:     1,
			WindowVolume:    types.USD(900),
			WindowStartedAt: now.Add(-10 * time.Second),
		}
		res := admission.Evaluate(limits, usage, types.USD(200), now)
		if res.Allowed {
			t.Fatal("expected velocity amount rejection")
		}
		if res.LimitType != admission.LimitVelocityAmount {
			t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitVelocityAmount)
		}
	})

	t.Run("stale window counts as zero", func(t *testing.T) {
		usage := account.UsageCounters{
			WindowCount:     3,
			WindowVolume:    types.USD(999),
			WindowStartedAt: now.Add(-2 * time.Minute),
		}
		if res := admission.Evaluate(limits, usage, types.USD(200), now); !res.Allowed {
			t.Fatalf("expected stale window to admit, got %s", res.Reason)
		}
	})

	t.Run("window never started counts as zero", func(t *testing.T) {
		usage := account.UsageCounters{WindowCount: 3, WindowVolume: types.USD(999)}
		if res := admission.Evaluate(limits, usage, types.USD(200), now); !res.Allowed {
			t.Fatalf("expected unstarted window to admit, got %s", res.Reason)
		}
	})

	t.Run("window exactly aged out counts as zero", func(t *testing.T) {
		usage := account.UsageCounters{
			WindowCount:     3,
			WindowStartedAt: now.Add(-time.Minute),
		}
		if res := admission.Evaluate(limits, usage, types.USD(200), now); !res.Allowed {
			t.Fatalf("expected window at exact boundary to admit, got %s", res.Reason)
		}
	})
}

func TestEvaluateNilCeilingsSkipped(t *testing.T) {
	now := time.Now().UTC()
	usage := account.UsageCounters{
		TodayCount:  1_000_000,
		TodayVolume: types.USD(1_000_000_000),
	}

	if res := admission.Evaluate(baseLimits(), usage, types.USD(500), now); !res.Allowed {
		t.Fatalf("expected nil ceilings to be skipped, got %s", res.Reason)
	}
}

func TestEvaluateCurrencyMismatch(t *testing.T) {
	now := time.Now().UTC()

	// A mismatched currency must reject before any amount comparison runs.
	res := admission.Evaluate(baseLimits(), account.UsageCounters{}, types.EUR(5000), now)
	if res.Allowed {
		t.Fatal("expected mismatched currency to be rejected")
	}
	if res.LimitType != admission.LimitCurrency {
		t.Errorf("LimitType: got %s, want %s", res.LimitType, admission.LimitCurrency)
	}
}
