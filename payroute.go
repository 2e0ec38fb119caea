package payroute

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/admission"
	"github.com/xraph/payroute/health"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/plugin"
	"github.com/xraph/payroute/routing"
	"github.com/xraph/payroute/store"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
	"github.com/xraph/payroute/usage"
)

// Scheduler triggers the engine's periodic work. The engine registers its
// reset and sweep jobs during Start and never runs its own timer loop.
type Scheduler interface {
	// Schedule registers job under a cron spec ("0 0 * * *") or an interval
	// spec ("@every 5m").
	Schedule(name, spec string, job func(context.Context)) error
}

// Engine is the merchant account routing engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	resolver  *tenancy.Resolver
	scheduler Scheduler

	rngMu sync.Mutex
	rng   *rand.Rand

	healthSweepInterval time.Duration
	defaultCurrency     string
}

// New creates a new Engine over the given store.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:               s,
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		resolver:            tenancy.NewResolver(s),
		rng:                 rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // routing spread, not crypto
		healthSweepInterval: 5 * time.Minute,
		defaultCurrency:     "usd",
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithScheduler sets the scheduler the engine registers its periodic jobs on.
// Without one, resets and sweeps must be driven manually via ResetPeriod and
// SweepHealth.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithHealthSweepInterval overrides the default 5 minute sweep cadence.
func WithHealthSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.healthSweepInterval = d
	}
}

// WithDefaultCurrency sets the currency assigned to accounts created without
// one. Defaults to "usd".
func WithDefaultCurrency(code string) Option {
	return func(e *Engine) {
		e.defaultCurrency = code
	}
}

// WithRand sets the random source used for weighted selection.
// Tests use a seeded source for reproducible draws.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// Start migrates the store, initializes plugins and registers the periodic
// jobs on the scheduler, if one is configured.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	if e.scheduler != nil {
		for _, p := range usage.AllPeriods() {
			period := p
			err := e.scheduler.Schedule("payroute.reset."+string(period), period.CronSpec(), func(jobCtx context.Context) {
				if _, err := e.ResetPeriod(jobCtx, period); err != nil {
					e.logger.Error("usage reset failed", "period", period, "error", err)
				}
			})
			if err != nil {
				return err
			}
		}

		err := e.scheduler.Schedule("payroute.health.sweep", "@every "+e.healthSweepInterval.String(), func(jobCtx context.Context) {
			if err := e.SweepHealth(jobCtx); err != nil {
				e.logger.Error("health sweep failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	e.logger.Info("payroute started",
		"scheduler", e.scheduler != nil,
		"sweep_interval", e.healthSweepInterval,
	)

	return nil
}

// Stop shuts down the engine.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Tenancy
// ──────────────────────────────────────────────────

// CanAccessCompany reports whether the caller may see and use the company.
func (e *Engine) CanAccessCompany(ctx context.Context, caller tenancy.CallerIdentity, companyID id.CompanyID) (bool, error) {
	return e.resolver.CanAccessCompany(ctx, caller, companyID)
}

// AccessibleCompanyIDs returns all company IDs visible to the caller.
func (e *Engine) AccessibleCompanyIDs(ctx context.Context, caller tenancy.CallerIdentity) ([]id.CompanyID, error) {
	return e.resolver.AccessibleCompanyIDs(ctx, caller)
}

// ScopeFilter builds the declarative filter for pre-filtering store queries.
func (e *Engine) ScopeFilter(caller tenancy.CallerIdentity, companyField string) (tenancy.Filter, error) {
	return tenancy.ScopeFilter(caller, companyField)
}

// authorizeCompany resolves access and converts a denial into a
// ScopeViolationError, emitting the scope denied hook.
func (e *Engine) authorizeCompany(ctx context.Context, caller tenancy.CallerIdentity, companyID id.CompanyID) error {
	ok, err := e.resolver.CanAccessCompany(ctx, caller, companyID)
	if err != nil {
		return err
	}
	if !ok {
		e.plugins.EmitScopeDenied(ctx, caller.SubjectID, string(caller.ScopeType), companyID.String())
		return ScopeViolationError{
			Scope:     caller.ScopeType,
			SubjectID: caller.SubjectID,
			CompanyID: companyID,
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Company Management
// ──────────────────────────────────────────────────

// CreateCompany registers a company in the hierarchy.
func (e *Engine) CreateCompany(ctx context.Context, company *tenancy.Company) error {
	if company.ID.IsNil() {
		company.ID = id.NewCompanyID()
	}
	if company.Status == "" {
		company.Status = tenancy.CompanyActive
	}
	company.Entity = types.NewEntity()

	return e.store.CreateCompany(ctx, company)
}

// GetCompany retrieves a company visible to the caller.
func (e *Engine) GetCompany(ctx context.Context, caller tenancy.CallerIdentity, companyID id.CompanyID) (*tenancy.Company, error) {
	if err := e.authorizeCompany(ctx, caller, companyID); err != nil {
		return nil, err
	}
	return e.store.GetCompany(ctx, companyID)
}

// ListCompanies lists the companies visible to the caller.
func (e *Engine) ListCompanies(ctx context.Context, caller tenancy.CallerIdentity) ([]*tenancy.Company, error) {
	filter, err := tenancy.ScopeFilter(caller, "company_id")
	if err != nil {
		return nil, err
	}
	return e.store.ListCompanies(ctx, filter)
}

// UpdateCompany updates a company the caller can access.
func (e *Engine) UpdateCompany(ctx context.Context, caller tenancy.CallerIdentity, company *tenancy.Company) error {
	if err := e.authorizeCompany(ctx, caller, company.ID); err != nil {
		return err
	}
	company.Touch()
	return e.store.UpdateCompany(ctx, company)
}

// ──────────────────────────────────────────────────
// Account Management
// ──────────────────────────────────────────────────

// CreateAccount creates a merchant account under a company the caller can
// access. Missing limits are filled with the safe default range.
func (e *Engine) CreateAccount(ctx context.Context, caller tenancy.CallerIdentity, acct *account.MerchantAccount) error {
	if err := e.authorizeCompany(ctx, caller, acct.CompanyID); err != nil {
		return err
	}

	if acct.ID.IsNil() {
		acct.ID = id.NewAccountID()
	}
	if acct.Status == "" {
		acct.Status = account.StatusPending
	}
	if acct.Currency == "" {
		acct.Currency = e.defaultCurrency
	}
	acct.Currency = strings.ToLower(acct.Currency)
	if acct.Limits == (account.Limits{}) {
		acct.Limits = account.DefaultLimits(acct.Currency)
	}
	if err := acct.Limits.ValidateCurrency(acct.Currency); err != nil {
		return err
	}
	if err := acct.Limits.Validate(); err != nil {
		return err
	}
	if acct.Health.Status == "" {
		acct.Health.Status = account.HealthHealthy
	}
	acct.Usage.TodayVolume = types.Zero(acct.Currency)
	acct.Usage.WeekVolume = types.Zero(acct.Currency)
	acct.Usage.MonthVolume = types.Zero(acct.Currency)
	acct.Usage.YearVolume = types.Zero(acct.Currency)
	acct.Usage.WindowVolume = types.Zero(acct.Currency)
	acct.Entity = types.NewEntity()

	if err := e.store.CreateAccount(ctx, acct); err != nil {
		return err
	}

	e.plugins.EmitAccountCreated(ctx, acct)
	return nil
}

// GetAccount retrieves a merchant account the caller can access.
func (e *Engine) GetAccount(ctx context.Context, caller tenancy.CallerIdentity, accountID id.AccountID) (*account.MerchantAccount, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := e.authorizeCompany(ctx, caller, acct.CompanyID); err != nil {
		return nil, err
	}
	return acct, nil
}

// UpdateAccount updates limits, routing or status of an account the caller
// can access. Usage and health fields are ignored; they belong to the ledger
// and the health monitor.
func (e *Engine) UpdateAccount(ctx context.Context, caller tenancy.CallerIdentity, acct *account.MerchantAccount) error {
	current, err := e.store.GetAccount(ctx, acct.ID)
	if err != nil {
		return err
	}
	if err := e.authorizeCompany(ctx, caller, current.CompanyID); err != nil {
		return err
	}

	// Currency is pinned at creation; the volume counters are denominated in it.
	acct.Currency = current.Currency
	if err := acct.Limits.ValidateCurrency(acct.Currency); err != nil {
		return err
	}
	if err := acct.Limits.Validate(); err != nil {
		return err
	}

	acct.CompanyID = current.CompanyID
	acct.Usage = current.Usage
	acct.Health = current.Health
	acct.Entity = current.Entity
	acct.Touch()

	if err := e.store.UpdateAccount(ctx, acct); err != nil {
		return err
	}

	e.plugins.EmitAccountUpdated(ctx, current, acct)
	return nil
}

// ListAccounts lists a company's accounts, caller permitting.
func (e *Engine) ListAccounts(ctx context.Context, caller tenancy.CallerIdentity, companyID id.CompanyID, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	if err := e.authorizeCompany(ctx, caller, companyID); err != nil {
		return nil, err
	}
	return e.store.ListAccounts(ctx, companyID, opts)
}

// ──────────────────────────────────────────────────
// Routing
// ──────────────────────────────────────────────────

// SelectAccount picks one eligible merchant account of the company for a
// transaction of the given amount.
//
// Selection is read-only and reserves no capacity: two concurrent selections
// may pick the same near-limit account, and the commit-time re-check inside
// RecordOutcome is the backstop.
func (e *Engine) SelectAccount(ctx context.Context, caller tenancy.CallerIdentity, companyID id.CompanyID, amount types.Money) (*routing.Selection, error) {
	if err := e.authorizeCompany(ctx, caller, companyID); err != nil {
		return nil, err
	}

	candidates, err := e.store.ListAccounts(ctx, companyID, account.ListOpts{Status: account.StatusActive})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	eligible := make([]*account.MerchantAccount, 0, len(candidates))
	var rejections []routing.Rejection

	for _, a := range candidates {
		if a.Currency != amount.Currency {
			rejections = append(rejections, routing.Rejection{
				AccountID: a.ID,
				Stage:     "currency",
				Reason:    "account currency does not match transaction currency",
			})
			continue
		}
		if a.Health.Status == account.HealthDown {
			rejections = append(rejections, routing.Rejection{
				AccountID: a.ID,
				Stage:     "health",
				Reason:    "account health is down",
			})
			continue
		}
		if res := admission.Evaluate(a.Limits, a.Usage, amount, now); !res.Allowed {
			rejections = append(rejections, routing.Rejection{
				AccountID: a.ID,
				Stage:     "limits",
				Reason:    res.Reason,
				Limit:     &res,
			})
			continue
		}
		eligible = append(eligible, a)
	}

	e.rngMu.Lock()
	selected := routing.Select(eligible, e.rng)
	e.rngMu.Unlock()

	if selected == nil {
		e.plugins.EmitSelectionFailed(ctx, companyID.String(), len(rejections))
		e.logger.Debug("no eligible account",
			"company_id", companyID,
			"amount", amount,
			"rejections", len(rejections),
		)
		return nil, NoEligibleAccountError{CompanyID: companyID, Rejections: rejections}
	}

	fromBackup := selected.Routing.IsBackupOnly
	e.plugins.EmitAccountSelected(ctx, selected, fromBackup)

	return &routing.Selection{
		Account:    selected,
		FromBackup: fromBackup,
		Rejections: rejections,
	}, nil
}

// EvaluateLimits is the pre-flight "can I charge this much" check. Pure read.
func (e *Engine) EvaluateLimits(ctx context.Context, caller tenancy.CallerIdentity, accountID id.AccountID, amount types.Money) (admission.Result, error) {
	acct, err := e.GetAccount(ctx, caller, accountID)
	if err != nil {
		return admission.Result{}, err
	}
	return admission.Evaluate(acct.Limits, acct.Usage, amount, time.Now().UTC()), nil
}

// ──────────────────────────────────────────────────
// Usage
// ──────────────────────────────────────────────────

// RecordOutcome commits one transaction outcome against an account: limits
// are re-validated against fresh counters, the counters advance atomically,
// and health is recomputed from the updated snapshot.
//
// Not cancellable once the counters have been applied; partial application
// does not occur.
func (e *Engine) RecordOutcome(ctx context.Context, caller tenancy.CallerIdentity, accountID id.AccountID, out usage.Outcome) error {
	if out.Amount <= 0 {
		return ErrInvalidOutcome
	}

	acct, err := e.GetAccount(ctx, caller, accountID)
	if err != nil {
		return err
	}
	if out.Currency == "" {
		out.Currency = acct.Currency
	}
	out.Currency = strings.ToLower(out.Currency)
	if out.Currency != acct.Currency {
		return fmt.Errorf("payroute: outcome currency %s vs account currency %s: %w",
			out.Currency, acct.Currency, account.ErrCurrencyMismatch)
	}

	// Commit-time re-validation: selection held no reservation, so a
	// concurrent transaction may have consumed the remaining headroom.
	now := out.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	amount := types.In(out.Currency, out.Amount)
	if res := admission.Evaluate(acct.Limits, acct.Usage, amount, now); !res.Allowed {
		e.plugins.EmitLimitExceeded(ctx, accountID.String(), string(res.LimitType), res.CurrentValue, res.LimitValue)
		return LimitExceededError{AccountID: accountID, Result: res}
	}

	var velocityWindow time.Duration
	if acct.Limits.Velocity != nil {
		velocityWindow = acct.Limits.Velocity.Window
	}

	updated, err := e.store.ApplyOutcome(ctx, accountID, out, velocityWindow)
	if err != nil {
		return err
	}

	e.plugins.EmitOutcomeRecorded(ctx, accountID.String(), out.Succeeded, out.Amount)
	e.logger.Debug("outcome recorded",
		"account_id", accountID,
		"succeeded", out.Succeeded,
		"amount", out.Amount,
		"latency_ms", out.LatencyMs,
	)

	e.recomputeHealth(ctx, updated, now)
	return nil
}

// CurrentUsage returns a snapshot of an account's rolling counters.
func (e *Engine) CurrentUsage(ctx context.Context, caller tenancy.CallerIdentity, accountID id.AccountID) (account.UsageCounters, error) {
	acct, err := e.GetAccount(ctx, caller, accountID)
	if err != nil {
		return account.UsageCounters{}, err
	}
	return acct.Usage, nil
}

// ResetPeriod zeroes one calendar period's counters across all accounts.
// Invoked by the scheduler at period boundaries; safe to call manually.
func (e *Engine) ResetPeriod(ctx context.Context, period usage.Period) (int64, error) {
	if !period.Valid() {
		return 0, ErrInvalidPeriod
	}

	resetAt := time.Now().UTC()
	n, err := e.store.ResetPeriod(ctx, period, resetAt)
	if err != nil {
		return 0, err
	}

	e.plugins.EmitUsageReset(ctx, string(period), n)
	e.logger.Info("usage counters reset", "period", period, "accounts", n)
	return n, nil
}

// ──────────────────────────────────────────────────
// Health
// ──────────────────────────────────────────────────

// SweepHealth recomputes health for all pending and active accounts.
// A failure on one account is logged and does not abort the sweep.
func (e *Engine) SweepHealth(ctx context.Context) error {
	start := time.Now()

	accounts, err := e.store.ListAccountsScoped(ctx, tenancy.Filter{Kind: tenancy.FilterNone}, account.ListOpts{})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	checked := 0
	for _, a := range accounts {
		if a.Status != account.StatusPending && a.Status != account.StatusActive {
			continue
		}
		e.recomputeHealth(ctx, a, now)
		checked++
	}

	elapsed := time.Since(start)
	e.plugins.EmitSweepCompleted(ctx, checked, elapsed)
	e.logger.Debug("health sweep completed", "checked", checked, "elapsed_ms", elapsed.Milliseconds())
	return nil
}

// recomputeHealth derives health from the account's counters and persists it,
// emitting the health changed hook on a status transition. Persistence errors
// are logged, not returned: health is derived state and the next sweep
// converges it.
func (e *Engine) recomputeHealth(ctx context.Context, a *account.MerchantAccount, now time.Time) {
	next := health.Recompute(a.Health, a.Usage, now)

	if err := e.store.UpdateHealth(ctx, a.ID, next); err != nil {
		e.logger.Error("health update failed", "account_id", a.ID, "error", err)
		return
	}

	if health.Changed(a.Health, next) {
		e.plugins.EmitHealthChanged(ctx, a.ID.String(), string(a.Health.Status), string(next.Status))
		e.logger.Info("account health changed",
			"account_id", a.ID,
			"from", a.Health.Status,
			"to", next.Status,
			"success_rate", next.SuccessRate,
		)
	}
}
