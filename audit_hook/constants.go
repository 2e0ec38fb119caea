package audithook

// Action constants for audit events.
const (
	// Company actions
	ActionCompanyCreated = "company.created"
	ActionCompanyUpdated = "company.updated"

	// Account actions
	ActionAccountCreated = "account.created"
	ActionAccountUpdated = "account.updated"

	// Routing actions
	ActionAccountSelected = "account.selected"
	ActionSelectionFailed = "selection.failed"

	// Usage actions
	ActionUsageRecorded = "account.usage.recorded"
	ActionLimitExceeded = "limit.exceeded"
	ActionUsageReset    = "usage.reset"

	// Health actions
	ActionHealthChanged  = "account.health.changed"
	ActionSweepCompleted = "health.sweep.completed"

	// Tenancy actions
	ActionScopeDenied = "scope.denied"
)

// Resource constants for audit events.
const (
	ResourceCompany = "company"
	ResourceAccount = "account"
	ResourceUsage   = "usage"
	ResourceHealth  = "health"
	ResourceScope   = "scope"
)

// Category constants for audit events.
const (
	CategoryTenancy = "tenancy"
	CategoryRouting = "routing"
	CategoryUsage   = "usage"
	CategoryHealth  = "health"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
