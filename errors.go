package payroute

import (
	"errors"
	"fmt"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/admission"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/store"
	"github.com/xraph/payroute/tenancy"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("payroute: not found")
	ErrAlreadyExists = errors.New("payroute: already exists")
	ErrInvalidInput  = errors.New("payroute: invalid input")

	// Tenancy errors (shared with the tenancy package so errors.Is works
	// across both import paths). ErrInvalidCallerScope means the identity
	// itself is malformed; ErrScopeViolation means a well-formed caller
	// reached outside its slice of the hierarchy.
	ErrInvalidCallerScope = tenancy.ErrInvalidCallerScope
	ErrScopeViolation     = errors.New("payroute: caller scope does not permit access")
	ErrCompanyNotFound    = tenancy.ErrCompanyNotFound
	ErrCompanyNotActive   = errors.New("payroute: company is not active")

	// Account errors
	ErrAccountNotFound  = account.ErrAccountNotFound
	ErrAccountNotActive = account.ErrAccountNotActive
	ErrDuplicateAccount = account.ErrDuplicateAccount
	ErrCurrencyMismatch = account.ErrCurrencyMismatch

	// Routing errors
	ErrNoEligibleAccount = errors.New("payroute: no eligible merchant account")

	// Usage errors
	ErrInvalidOutcome = errors.New("payroute: invalid transaction outcome")
	ErrInvalidPeriod  = errors.New("payroute: invalid reset period")

	// Store errors. ErrConcurrentUpdateConflict is shared with the store
	// package: no shipped store returns it, but drivers built on
	// compare-and-swap storage surface it and callers may retry.
	ErrStoreNotReady            = errors.New("payroute: store not ready")
	ErrStoreClosed              = errors.New("payroute: store is closed")
	ErrTransactionFailed        = errors.New("payroute: transaction failed")
	ErrConcurrentUpdateConflict = store.ErrConcurrentUpdate
	ErrMigrationFailed          = errors.New("payroute: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("payroute: validation failed for %s: %s", e.Field, e.Message)
}

// ScopeViolationError is returned when a caller reaches for a company outside
// its visible slice of the hierarchy.
type ScopeViolationError struct {
	Scope     tenancy.Scope
	SubjectID string
	CompanyID id.CompanyID
}

func (e ScopeViolationError) Error() string {
	return fmt.Sprintf("payroute: caller %s (scope %s) may not access company %s",
		e.SubjectID, e.Scope, e.CompanyID)
}

// Is makes the error match ErrScopeViolation for coarse handling.
func (e ScopeViolationError) Is(target error) bool {
	return target == ErrScopeViolation
}

// LimitExceededError carries the admission result that rejected a
// transaction at commit time.
type LimitExceededError struct {
	AccountID id.AccountID
	Result    admission.Result
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf("payroute: account %s rejected transaction: %s (%s: %d/%d)",
		e.AccountID, e.Result.Reason, e.Result.LimitType, e.Result.CurrentValue, e.Result.LimitValue)
}

// NoEligibleAccountError aggregates per-account rejection reasons when
// selection finds no candidate.
type NoEligibleAccountError struct {
	CompanyID  id.CompanyID
	Rejections []Rejection
}

func (e NoEligibleAccountError) Error() string {
	return fmt.Sprintf("payroute: no eligible merchant account for company %s (%d candidates rejected)",
		e.CompanyID, len(e.Rejections))
}

// Is makes the error match ErrNoEligibleAccount for coarse handling.
func (e NoEligibleAccountError) Is(target error) bool {
	return target == ErrNoEligibleAccount
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCompanyNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsScopeViolation returns true if the error is an access denial. A malformed
// caller identity is ErrInvalidCallerScope and does not match.
func IsScopeViolation(err error) bool {
	return errors.Is(err, ErrScopeViolation)
}

// IsLimitExceeded returns true if the error is a limit rejection.
func IsLimitExceeded(err error) bool {
	var le LimitExceededError
	return errors.As(err, &le)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrConcurrentUpdateConflict)
}
