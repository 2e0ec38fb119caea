// Package memory provides an in-memory store implementation.
// Useful for tests, sandboxes and single-process deployments; all data is
// lost on restart.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/store"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
	"github.com/xraph/payroute/usage"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu        sync.RWMutex
	companies map[id.CompanyID]*tenancy.Company
	accounts  map[id.AccountID]*account.MerchantAccount
	closed    bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		companies: make(map[id.CompanyID]*tenancy.Company),
		accounts:  make(map[id.AccountID]*account.MerchantAccount),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Companies
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateCompany(_ context.Context, company *tenancy.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.companies[company.ID]; ok {
		return store.ErrDuplicate
	}
	s.companies[company.ID] = copyCompany(company)
	return nil
}

func (s *Store) GetCompany(_ context.Context, companyID id.CompanyID) (*tenancy.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return nil, tenancy.ErrCompanyNotFound
	}
	return copyCompany(c), nil
}

func (s *Store) UpdateCompany(_ context.Context, company *tenancy.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[company.ID]; !ok {
		return tenancy.ErrCompanyNotFound
	}
	s.companies[company.ID] = copyCompany(company)
	return nil
}

func (s *Store) DeleteCompany(_ context.Context, companyID id.CompanyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[companyID]; !ok {
		return tenancy.ErrCompanyNotFound
	}
	delete(s.companies, companyID)
	return nil
}

func (s *Store) ListCompanies(_ context.Context, filter tenancy.Filter) ([]*tenancy.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenancy.Company, 0, len(s.companies))
	for _, c := range s.companies {
		if companyMatches(c, filter) {
			out = append(out, copyCompany(c))
		}
	}
	sortByID(out, func(c *tenancy.Company) string { return c.ID.String() })
	return out, nil
}

func companyMatches(c *tenancy.Company, f tenancy.Filter) bool {
	switch f.Kind {
	case tenancy.FilterByClient:
		return c.ClientID == f.ClientID
	case tenancy.FilterByCompany:
		return c.ID == f.CompanyID
	default:
		return true
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Accounts
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, acct *account.MerchantAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.accounts[acct.ID]; ok {
		return account.ErrDuplicateAccount
	}
	s.accounts[acct.ID] = copyAccount(acct)
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) UpdateAccount(_ context.Context, acct *account.MerchantAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; !ok {
		return account.ErrAccountNotFound
	}
	s.accounts[acct.ID] = copyAccount(acct)
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return account.ErrAccountNotFound
	}
	delete(s.accounts, accountID)
	return nil
}

func (s *Store) ListAccounts(_ context.Context, companyID id.CompanyID, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*account.MerchantAccount, 0)
	for _, a := range s.accounts {
		if a.CompanyID != companyID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, copyAccount(a))
	}
	sortByID(out, func(a *account.MerchantAccount) string { return a.ID.String() })
	return paginate(out, opts.Offset, opts.Limit), nil
}

func (s *Store) ListAccountsScoped(ctx context.Context, filter tenancy.Filter, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*account.MerchantAccount, 0)
	for _, a := range s.accounts {
		if !s.accountInScope(a, filter) {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, copyAccount(a))
	}
	sortByID(out, func(a *account.MerchantAccount) string { return a.ID.String() })
	return paginate(out, opts.Offset, opts.Limit), nil
}

// accountInScope resolves the account's owning company against the filter.
// Caller holds at least the read lock.
func (s *Store) accountInScope(a *account.MerchantAccount, f tenancy.Filter) bool {
	switch f.Kind {
	case tenancy.FilterByClient:
		c, ok := s.companies[a.CompanyID]
		return ok && c.ClientID == f.ClientID
	case tenancy.FilterByCompany:
		return a.CompanyID == f.CompanyID
	default:
		return true
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Usage
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) ApplyOutcome(_ context.Context, accountID id.AccountID, out usage.Outcome, velocityWindow time.Duration) (*account.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}

	at := out.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	u := &a.Usage
	u.TodayCount++
	u.TodayVolume.Amount += out.Amount
	u.WeekCount++
	u.WeekVolume.Amount += out.Amount
	u.MonthCount++
	u.MonthVolume.Amount += out.Amount
	u.YearCount++
	u.YearVolume.Amount += out.Amount

	if out.Succeeded {
		u.TodaySuccessCount++
	} else {
		u.TodayFailureCount++
		if out.Error != "" {
			a.Health.LastError = out.Error
		}
	}

	// Velocity window: roll over when stale, then accumulate.
	if velocityWindow > 0 {
		if u.WindowStartedAt.IsZero() || at.Sub(u.WindowStartedAt) >= velocityWindow {
			u.WindowCount = 0
			u.WindowVolume.Amount = 0
			u.WindowStartedAt = at
		}
		u.WindowCount++
		u.WindowVolume.Amount += out.Amount
	}

	// Cumulative mean over today's completed transactions.
	n := u.TodaySuccessCount + u.TodayFailureCount
	a.Health.AvgLatencyMs += (out.LatencyMs - a.Health.AvgLatencyMs) / float64(n)

	u.LastTransactionAt = at
	a.Touch()

	return copyAccount(a), nil
}

func (s *Store) ResetPeriod(_ context.Context, period usage.Period, resetAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, a := range s.accounts {
		u := &a.Usage
		switch period {
		case usage.PeriodDay:
			u.TodayCount, u.TodayVolume.Amount = 0, 0
			u.TodaySuccessCount, u.TodayFailureCount = 0, 0
			u.UsageResetAt = resetAt
		case usage.PeriodWeek:
			u.WeekCount, u.WeekVolume.Amount = 0, 0
		case usage.PeriodMonth:
			u.MonthCount, u.MonthVolume.Amount = 0, 0
		case usage.PeriodYear:
			u.YearCount, u.YearVolume.Amount = 0, 0
		default:
			return 0, store.ErrUnknownPeriod
		}
		n++
	}
	return n, nil
}

func (s *Store) UpdateHealth(_ context.Context, accountID id.AccountID, h account.Health) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.Health = h
	a.Touch()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func copyCompany(c *tenancy.Company) *tenancy.Company {
	cp := *c
	cp.Metadata = maps.Clone(c.Metadata)
	return &cp
}

func copyAccount(a *account.MerchantAccount) *account.MerchantAccount {
	cp := *a
	cp.Tags = slices.Clone(a.Tags)
	cp.Metadata = maps.Clone(a.Metadata)
	cp.Routing.PoolIDs = slices.Clone(a.Routing.PoolIDs)
	cp.Limits = copyLimits(a.Limits)
	return &cp
}

func copyLimits(l account.Limits) account.Limits {
	cp := l
	cp.DailyTransactionLimit = cloneInt(l.DailyTransactionLimit)
	cp.WeeklyTransactionLimit = cloneInt(l.WeeklyTransactionLimit)
	cp.MonthlyTransactionLimit = cloneInt(l.MonthlyTransactionLimit)
	cp.YearlyTransactionLimit = cloneInt(l.YearlyTransactionLimit)
	cp.DailyVolumeLimit = cloneMoney(l.DailyVolumeLimit)
	cp.WeeklyVolumeLimit = cloneMoney(l.WeeklyVolumeLimit)
	cp.MonthlyVolumeLimit = cloneMoney(l.MonthlyVolumeLimit)
	cp.YearlyVolumeLimit = cloneMoney(l.YearlyVolumeLimit)
	if l.Velocity != nil {
		v := *l.Velocity
		cp.Velocity = &v
		cp.Velocity.MaxAmount = cloneMoney(l.Velocity.MaxAmount)
	}
	return cp
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneMoney(v *types.Money) *types.Money {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sortByID[T any](items []T, key func(T) string) {
	slices.SortFunc(items, func(x, y T) int {
		switch kx, ky := key(x), key(y); {
		case kx < ky:
			return -1
		case kx > ky:
			return 1
		default:
			return 0
		}
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
