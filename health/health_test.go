package health_test

import (
	"testing"
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/health"
	"github.com/xraph/payroute/types"
)

func TestRecomputeThresholds(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name     string
		success  int64
		failure  int64
		expected account.HealthStatus
	}{
		{"all success", 100, 0, account.HealthHealthy},
		{"exactly 80 percent", 80, 20, account.HealthHealthy},
		{"just below 80 percent", 79, 21, account.HealthDegraded},
		{"exactly 50 percent", 50, 50, account.HealthDegraded},
		{"just below 50 percent", 49, 51, account.HealthDown},
		{"all failure", 0, 100, account.HealthDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := account.UsageCounters{
				TodayCount:        tt.success + tt.failure,
				TodaySuccessCount: tt.success,
				TodayFailureCount: tt.failure,
			}
			prev := account.Health{Status: account.HealthHealthy}

			next := health.Recompute(prev, usage, now)
			if next.Status != tt.expected {
				t.Errorf("Status: got %s, want %s (rate %.1f)", next.Status, tt.expected, next.SuccessRate)
			}
			want := float64(tt.success) / float64(tt.success+tt.failure) * 100
			if next.SuccessRate != want {
				t.Errorf("SuccessRate: got %.2f, want %.2f", next.SuccessRate, want)
			}
			if !next.LastHealthCheck.Equal(now) {
				t.Errorf("LastHealthCheck: got %v, want %v", next.LastHealthCheck, now)
			}
		})
	}
}

func TestRecomputeNoSignal(t *testing.T) {
	now := time.Now().UTC()
	prev := account.Health{
		Status:      account.HealthDegraded,
		SuccessRate: 75,
		LastError:   "card declined",
	}

	next := health.Recompute(prev, account.UsageCounters{}, now)

	if next.Status != account.HealthDegraded {
		t.Errorf("Status: got %s, want degraded (no signal keeps previous)", next.Status)
	}
	if next.SuccessRate != 75 {
		t.Errorf("SuccessRate: got %.1f, want 75 (unchanged)", next.SuccessRate)
	}
	if next.LastError != "card declined" {
		t.Errorf("LastError: got %q, want preserved", next.LastError)
	}
	if !next.LastHealthCheck.Equal(now) {
		t.Error("LastHealthCheck should advance even with no signal")
	}
}

func TestRecomputeRecoveryClearsLastError(t *testing.T) {
	now := time.Now().UTC()
	prev := account.Health{
		Status:    account.HealthDown,
		LastError: "gateway timeout",
	}
	usage := account.UsageCounters{
		TodayCount:        10,
		TodaySuccessCount: 9,
		TodayFailureCount: 1,
	}

	next := health.Recompute(prev, usage, now)
	if next.Status != account.HealthHealthy {
		t.Fatalf("Status: got %s, want healthy", next.Status)
	}
	if next.LastError != "" {
		t.Errorf("LastError: got %q, want cleared on recovery", next.LastError)
	}
}

func TestRecomputeCarriesLatency(t *testing.T) {
	now := time.Now().UTC()
	prev := account.Health{Status: account.HealthHealthy, AvgLatencyMs: 240.5}
	usage := account.UsageCounters{
		TodayCount:        4,
		TodaySuccessCount: 4,
		TodayVolume:       types.USD(400),
	}

	next := health.Recompute(prev, usage, now)
	if next.AvgLatencyMs != 240.5 {
		t.Errorf("AvgLatencyMs: got %.1f, want carried through unchanged", next.AvgLatencyMs)
	}
}

func TestChanged(t *testing.T) {
	healthy := account.Health{Status: account.HealthHealthy}
	down := account.Health{Status: account.HealthDown}

	if !health.Changed(healthy, down) {
		t.Error("expected healthy -> down to report a change")
	}
	if health.Changed(healthy, account.Health{Status: account.HealthHealthy, SuccessRate: 90}) {
		t.Error("rate movement without a status transition is not a change")
	}
}
