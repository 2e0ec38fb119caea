// Package store defines the persistence interface for payroute.
// Four implementations ship with the engine: memory, postgres, sqlite and
// mongo. All of them provide the same atomicity guarantee for ApplyOutcome.
package store

import (
	"context"
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/usage"
)

// Store is the unified persistence interface. Implementations must be safe
// for concurrent use.
type Store interface {
	CompanyStore
	AccountStore
	UsageStore

	// Migrate runs any pending schema migrations.
	Migrate(ctx context.Context) error
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// CompanyStore persists the hierarchy nodes the scope resolver reads.
// It satisfies tenancy.CompanyDirectory.
type CompanyStore interface {
	CreateCompany(ctx context.Context, company *tenancy.Company) error
	GetCompany(ctx context.Context, companyID id.CompanyID) (*tenancy.Company, error)
	UpdateCompany(ctx context.Context, company *tenancy.Company) error
	DeleteCompany(ctx context.Context, companyID id.CompanyID) error
	ListCompanies(ctx context.Context, filter tenancy.Filter) ([]*tenancy.Company, error)
}

// AccountStore persists merchant accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *account.MerchantAccount) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.MerchantAccount, error)
	UpdateAccount(ctx context.Context, acct *account.MerchantAccount) error
	DeleteAccount(ctx context.Context, accountID id.AccountID) error
	// ListAccounts returns the accounts of one company, filtered by opts.
	ListAccounts(ctx context.Context, companyID id.CompanyID, opts account.ListOpts) ([]*account.MerchantAccount, error)
	// ListAccountsScoped returns accounts across companies, pre-filtered by
	// the caller's declarative scope filter.
	ListAccountsScoped(ctx context.Context, filter tenancy.Filter, opts account.ListOpts) ([]*account.MerchantAccount, error)
}

// UsageStore mutates the rolling counters and derived health.
type UsageStore interface {
	// ApplyOutcome atomically folds one transaction outcome into the
	// account's counters: every calendar counter advances, the success or
	// failure count increments, the average latency is updated as a
	// cumulative mean, and the velocity window rolls over when stale. All of
	// it happens in a single atomic statement per backend; two concurrent
	// calls never lose an update. The updated account is returned so the
	// caller can recompute health from fresh counters.
	ApplyOutcome(ctx context.Context, accountID id.AccountID, out usage.Outcome, velocityWindow time.Duration) (*account.MerchantAccount, error)

	// ResetPeriod zeroes the counters of one calendar period across all
	// accounts and stamps UsageResetAt. Daily resets also zero the
	// success/failure split.
	ResetPeriod(ctx context.Context, period usage.Period, resetAt time.Time) (int64, error)

	// UpdateHealth persists a recomputed health snapshot.
	UpdateHealth(ctx context.Context, accountID id.AccountID, h account.Health) error
}
