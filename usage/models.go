// Package usage defines transaction outcomes and the calendar periods the
// counter ledger rolls over.
package usage

import "time"

// Outcome is the result of one routed transaction, reported back to the
// ledger after the processor responds.
type Outcome struct {
	Amount    int64     `json:"amount"` // smallest currency unit
	Currency  string    `json:"currency"`
	Succeeded bool      `json:"succeeded"`
	LatencyMs float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"` // processor error, failures only
	At        time.Time `json:"at,omitempty"`    // zero means "now"
}

// Period identifies a calendar accumulation window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Valid reports whether p names a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// CronSpec returns the reset schedule for the period. Daily resets fire at
// midnight, weekly on Monday 00:00, monthly on the 1st, yearly on Jan 1.
func (p Period) CronSpec() string {
	switch p {
	case PeriodDay:
		return "0 0 * * *"
	case PeriodWeek:
		return "0 0 * * 1"
	case PeriodMonth:
		return "0 0 1 * *"
	case PeriodYear:
		return "0 0 1 1 *"
	}
	return ""
}

// AllPeriods lists every period in reset-scheduling order.
func AllPeriods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}
}
