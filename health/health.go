// Package health derives an account's health status from its usage counters.
package health

import (
	"time"

	"github.com/xraph/payroute/account"
)

// Success-rate thresholds, in percent of today's completed transactions.
const (
	downBelow     = 50.0
	degradedBelow = 80.0
)

// Recompute derives health from today's counters. With zero completed
// transactions there is no signal, so the previous status and success rate
// are kept; only the check timestamp advances. AvgLatencyMs is maintained by
// the ledger as a cumulative mean and is carried through unchanged.
func Recompute(prev account.Health, usage account.UsageCounters, now time.Time) account.Health {
	next := prev
	next.LastHealthCheck = now

	total := usage.TodaySuccessCount + usage.TodayFailureCount
	if total == 0 {
		return next
	}

	rate := float64(usage.TodaySuccessCount) / float64(total) * 100

	next.SuccessRate = rate
	switch {
	case rate < downBelow:
		next.Status = account.HealthDown
	case rate < degradedBelow:
		next.Status = account.HealthDegraded
	default:
		next.Status = account.HealthHealthy
		next.LastError = ""
	}
	return next
}

// Changed reports whether a recompute moved the account between statuses.
func Changed(prev, next account.Health) bool {
	return prev.Status != next.Status
}
