package payroute_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	payroute "github.com/xraph/payroute"
	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/admission"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/store"
	"github.com/xraph/payroute/store/memory"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
	"github.com/xraph/payroute/usage"
)

// fakeScheduler records job registrations and lets tests fire them manually.
type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]func(context.Context)
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[string]func(context.Context){}}
}

func (s *fakeScheduler) Schedule(name, _ string, job func(context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = job
	return nil
}

func (s *fakeScheduler) fire(ctx context.Context, name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if ok {
		job(ctx)
	}
	return ok
}

type fixture struct {
	engine  *payroute.Engine
	company *tenancy.Company
	org     tenancy.CallerIdentity
}

func newFixture(t *testing.T, opts ...payroute.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	opts = append(opts, payroute.WithRand(rand.New(rand.NewPCG(7, 7)))) //nolint:gosec // seeded draws for assertions
	eng := payroute.New(memory.New(), opts...)
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	orgID := id.NewOrganizationID()
	org := tenancy.CallerIdentity{
		SubjectID:      "admin",
		ScopeType:      tenancy.ScopeOrganization,
		ScopeID:        orgID,
		OrganizationID: orgID,
	}

	company := &tenancy.Company{
		ClientID:       id.NewClientID(),
		OrganizationID: orgID,
		Name:           "Acme Payments",
	}
	if err := eng.CreateCompany(ctx, company); err != nil {
		t.Fatal(err)
	}

	return &fixture{engine: eng, company: company, org: org}
}

func (f *fixture) createAccount(t *testing.T, mutate func(*account.MerchantAccount)) *account.MerchantAccount {
	t.Helper()
	a := &account.MerchantAccount{
		CompanyID: f.company.ID,
		Name:      "processor",
		Status:    account.StatusActive,
		Currency:  "usd",
	}
	if mutate != nil {
		mutate(a)
	}
	if err := f.engine.CreateAccount(context.Background(), f.org, a); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestCreateAccountDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := &account.MerchantAccount{CompanyID: f.company.ID, Name: "minimal"}
	if err := f.engine.CreateAccount(ctx, f.org, a); err != nil {
		t.Fatal(err)
	}

	if a.ID.IsNil() {
		t.Error("expected generated account ID")
	}
	if a.Status != account.StatusPending {
		t.Errorf("Status: got %s, want PENDING", a.Status)
	}
	if a.Currency != "usd" {
		t.Errorf("Currency: got %s, want usd", a.Currency)
	}
	if a.Limits.MinTransactionAmount.Amount != 1 {
		t.Errorf("default min: got %d, want 1", a.Limits.MinTransactionAmount.Amount)
	}
	if a.Limits.MaxTransactionAmount.Amount != account.DefaultMaxTransactionAmount {
		t.Errorf("default max: got %d", a.Limits.MaxTransactionAmount.Amount)
	}
	if a.Health.Status != account.HealthHealthy {
		t.Errorf("Health: got %s, want healthy", a.Health.Status)
	}
}

func TestCreateAccountInvalidLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := &account.MerchantAccount{
		CompanyID: f.company.ID,
		Name:      "inverted",
		Limits: account.Limits{
			MinTransactionAmount: types.USD(1000),
			MaxTransactionAmount: types.USD(100),
		},
	}
	if err := f.engine.CreateAccount(ctx, f.org, a); !errors.Is(err, account.ErrLimitRange) {
		t.Fatalf("expected ErrLimitRange, got %v", err)
	}
}

func TestScopeDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := tenancy.CallerIdentity{
		SubjectID: "outsider",
		ScopeType: tenancy.ScopeCompany,
		ScopeID:   id.NewCompanyID(),
		CompanyID: id.NewCompanyID(),
	}

	_, err := f.engine.GetCompany(ctx, foreign, f.company.ID)
	if !payroute.IsScopeViolation(err) {
		t.Fatalf("expected scope violation, got %v", err)
	}

	var sve payroute.ScopeViolationError
	if !errors.As(err, &sve) {
		t.Fatal("expected ScopeViolationError")
	}
	if sve.SubjectID != "outsider" || sve.CompanyID != f.company.ID {
		t.Errorf("violation details: %+v", sve)
	}
}

func TestSelectAccountPrefersLowestTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	primary := f.createAccount(t, func(a *account.MerchantAccount) {
		a.Name = "primary"
		a.Routing = account.RoutingConfig{Priority: 0, Weight: 10}
	})
	f.createAccount(t, func(a *account.MerchantAccount) {
		a.Name = "secondary"
		a.Routing = account.RoutingConfig{Priority: 5, Weight: 10}
	})

	sel, err := f.engine.SelectAccount(ctx, f.org, f.company.ID, types.USD(5000))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Account.ID != primary.ID {
		t.Errorf("selected %s, want primary", sel.Account.Name)
	}
	if sel.FromBackup {
		t.Error("primary selection must not be flagged as backup")
	}
}

func TestSelectAccountSkipsDownHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	down := f.createAccount(t, func(a *account.MerchantAccount) {
		a.Name = "down"
		a.Routing = account.RoutingConfig{Priority: 0, Weight: 1, IsDefault: true}
	})
	healthy := f.createAccount(t, func(a *account.MerchantAccount) {
		a.Name = "healthy"
		a.Routing = account.RoutingConfig{Priority: 5, Weight: 1}
	})

	// Drive the default account's health to down: 10 failures out of 10.
	for i := 0; i < 10; i++ {
		err := f.engine.RecordOutcome(ctx, f.org, down.ID, usage.Outcome{
			Amount: 100, Succeeded: false, Error: "gateway timeout",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	sel, err := f.engine.SelectAccount(ctx, f.org, f.company.ID, types.USD(5000))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Account.ID != healthy.ID {
		t.Errorf("selected %s, want the healthy account", sel.Account.Name)
	}

	found := false
	for _, r := range sel.Rejections {
		if r.AccountID == down.ID && r.Stage == "health" {
			found = true
		}
	}
	if !found {
		t.Error("expected a health-stage rejection for the down account")
	}
}

func TestSelectAccountNoEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createAccount(t, func(a *account.MerchantAccount) {
		a.Name = "tiny-limit"
		a.Limits = account.Limits{
			MinTransactionAmount: types.USD(1),
			MaxTransactionAmount: types.USD(100),
		}
	})

	_, err := f.engine.SelectAccount(ctx, f.org, f.company.ID, types.USD(50_000))
	if !errors.Is(err, payroute.ErrNoEligibleAccount) {
		t.Fatalf("expected ErrNoEligibleAccount, got %v", err)
	}

	var nea payroute.NoEligibleAccountError
	if !errors.As(err, &nea) {
		t.Fatal("expected NoEligibleAccountError")
	}
	if len(nea.Rejections) != 1 || nea.Rejections[0].Stage != "limits" {
		t.Errorf("rejections: %+v", nea.Rejections)
	}
}

func TestRecordOutcomeAdvancesUsageAndHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	if err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{
		Amount: 5000, Succeeded: true, LatencyMs: 120,
	}); err != nil {
		t.Fatal(err)
	}

	u, err := f.engine.CurrentUsage(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.TodayCount != 1 || u.TodayVolume.Amount != 5000 {
		t.Errorf("usage: count %d volume %d", u.TodayCount, u.TodayVolume.Amount)
	}

	got, err := f.engine.GetAccount(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Health.Status != account.HealthHealthy || got.Health.SuccessRate != 100 {
		t.Errorf("health: %+v", got.Health)
	}
}

func TestRecordOutcomeHealthTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	// 1 success, 3 failures: 25% success rate drives the account down.
	outcomes := []bool{true, false, false, false}
	for _, ok := range outcomes {
		err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{
			Amount: 100, Succeeded: ok, Error: "declined",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.engine.GetAccount(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Health.Status != account.HealthDown {
		t.Errorf("Status: got %s, want down (rate %.0f)", got.Health.Status, got.Health.SuccessRate)
	}
	if got.Health.LastError == "" {
		t.Error("expected LastError from failed outcome")
	}
}

func TestRecordOutcomeCommitTimeRecheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	limit := int64(2)
	a := f.createAccount(t, func(a *account.MerchantAccount) {
		a.Limits = account.DefaultLimits("usd")
		a.Limits.DailyTransactionLimit = &limit
	})

	for i := 0; i < 2; i++ {
		if err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 100, Succeeded: true}); err != nil {
			t.Fatal(err)
		}
	}

	// Third commit exceeds the daily count even though selection would have
	// happened earlier; the commit-time re-check rejects it.
	err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 100, Succeeded: true})
	if !payroute.IsLimitExceeded(err) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}

	var le payroute.LimitExceededError
	if !errors.As(err, &le) {
		t.Fatal("expected LimitExceededError")
	}
	if le.Result.LimitType != admission.LimitDailyCount {
		t.Errorf("LimitType: got %s", le.Result.LimitType)
	}

	// The rejected outcome must not have advanced any counter.
	u, err := f.engine.CurrentUsage(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.TodayCount != 2 {
		t.Errorf("TodayCount: got %d, want 2 (rejected commit leaked)", u.TodayCount)
	}
}

func TestRecordOutcomeInvalidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	for _, amount := range []int64{0, -100} {
		err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: amount, Succeeded: true})
		if !errors.Is(err, payroute.ErrInvalidOutcome) {
			t.Errorf("amount %d: expected ErrInvalidOutcome, got %v", amount, err)
		}
	}
}

func TestEvaluateLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	res, err := f.engine.EvaluateLimits(ctx, f.org, a.ID, types.USD(5000))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Errorf("expected allowed, got %s", res.Reason)
	}

	res, err = f.engine.EvaluateLimits(ctx, f.org, a.ID, types.In("usd", account.DefaultMaxTransactionAmount+1))
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Error("expected rejection above the default maximum")
	}
}

func TestResetPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	if err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 100, Succeeded: true}); err != nil {
		t.Fatal(err)
	}

	n, err := f.engine.ResetPeriod(ctx, usage.PeriodDay)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reset accounts: got %d, want 1", n)
	}

	u, err := f.engine.CurrentUsage(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.TodayCount != 0 {
		t.Errorf("TodayCount after reset: got %d", u.TodayCount)
	}
	if u.MonthCount != 1 {
		t.Errorf("MonthCount: got %d, want untouched", u.MonthCount)
	}

	if _, err := f.engine.ResetPeriod(ctx, usage.Period("fortnight")); !errors.Is(err, payroute.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestSchedulerJobs(t *testing.T) {
	sched := newFakeScheduler()
	f := newFixture(t, payroute.WithScheduler(sched), payroute.WithHealthSweepInterval(time.Minute))
	ctx := context.Background()
	a := f.createAccount(t, nil)

	// One reset job per period plus the sweep.
	for _, name := range []string{
		"payroute.reset.day",
		"payroute.reset.week",
		"payroute.reset.month",
		"payroute.reset.year",
		"payroute.health.sweep",
	} {
		if _, ok := sched.jobs[name]; !ok {
			t.Errorf("job %s not registered", name)
		}
	}

	if err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 100, Succeeded: true}); err != nil {
		t.Fatal(err)
	}

	if !sched.fire(ctx, "payroute.reset.day") {
		t.Fatal("day reset job missing")
	}
	u, err := f.engine.CurrentUsage(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.TodayCount != 0 {
		t.Errorf("TodayCount after scheduled reset: got %d", u.TodayCount)
	}

	if !sched.fire(ctx, "payroute.health.sweep") {
		t.Fatal("sweep job missing")
	}
}

func TestSweepHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	// Force stale derived health, then let the sweep reconcile it.
	for i := 0; i < 5; i++ {
		if err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 100, Succeeded: false, Error: "declined"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.engine.SweepHealth(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := f.engine.GetAccount(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Health.Status != account.HealthDown {
		t.Errorf("Status after sweep: got %s, want down", got.Health.Status)
	}
}

func TestUpdateAccountPreservesLedgerState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	if err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 500, Succeeded: true}); err != nil {
		t.Fatal(err)
	}

	update := &account.MerchantAccount{
		ID:       a.ID,
		Name:     "renamed",
		Status:   account.StatusActive,
		Currency: a.Currency,
		Limits:   account.DefaultLimits("usd"),
		// Deliberately poisoned; the engine must ignore these.
		Usage:  account.UsageCounters{TodayCount: 999},
		Health: account.Health{Status: account.HealthDown},
	}
	if err := f.engine.UpdateAccount(ctx, f.org, update); err != nil {
		t.Fatal(err)
	}

	got, err := f.engine.GetAccount(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "renamed" {
		t.Errorf("Name: got %q", got.Name)
	}
	if got.Usage.TodayCount != 1 {
		t.Errorf("TodayCount: got %d, want ledger state preserved", got.Usage.TodayCount)
	}
	if got.Health.Status == account.HealthDown {
		t.Error("caller-supplied health must be ignored")
	}
}

func TestSelectAccountRejectsMismatchedCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createAccount(t, func(a *account.MerchantAccount) {
		a.Name = "euro"
		a.Currency = "eur"
	})

	// A lone mismatched-currency account is a rejection, never a crash.
	_, err := f.engine.SelectAccount(ctx, f.org, f.company.ID, types.USD(5000))
	var nee payroute.NoEligibleAccountError
	if !errors.As(err, &nee) {
		t.Fatalf("expected NoEligibleAccountError, got %v", err)
	}
	if len(nee.Rejections) != 1 || nee.Rejections[0].Stage != "currency" {
		t.Fatalf("rejections: %+v", nee.Rejections)
	}

	usd := f.createAccount(t, func(a *account.MerchantAccount) { a.Name = "dollar" })

	sel, err := f.engine.SelectAccount(ctx, f.org, f.company.ID, types.USD(5000))
	if err != nil {
		t.Fatal(err)
	}
	if sel.Account.ID != usd.ID {
		t.Errorf("selected %s, want the usd account", sel.Account.Name)
	}
	if len(sel.Rejections) != 1 || sel.Rejections[0].Stage != "currency" {
		t.Errorf("rejections alongside a selection: %+v", sel.Rejections)
	}
}

func TestRecordOutcomeCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createAccount(t, nil)

	err := f.engine.RecordOutcome(ctx, f.org, a.ID, usage.Outcome{Amount: 500, Currency: "eur", Succeeded: true})
	if !errors.Is(err, payroute.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}

	u, err := f.engine.CurrentUsage(ctx, f.org, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u.TodayCount != 0 {
		t.Errorf("TodayCount after rejected outcome: got %d, want 0", u.TodayCount)
	}
}

func TestCreateAccountMismatchedLimitCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dailyVolume := types.EUR(1_000_000)
	a := &account.MerchantAccount{
		CompanyID: f.company.ID,
		Name:      "mixed",
		Currency:  "usd",
		Limits: account.Limits{
			MinTransactionAmount: types.USD(100),
			MaxTransactionAmount: types.USD(100_000),
			DailyVolumeLimit:     &dailyVolume,
		},
	}
	if err := f.engine.CreateAccount(ctx, f.org, a); !errors.Is(err, payroute.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

// failingHealthStore rejects health writes for one account.
type failingHealthStore struct {
	store.Store
	failID id.AccountID
}

func (s *failingHealthStore) UpdateHealth(ctx context.Context, accountID id.AccountID, h account.Health) error {
	if accountID == s.failID {
		return errors.New("health write rejected")
	}
	return s.Store.UpdateHealth(ctx, accountID, h)
}

func TestSweepHealthContinuesPastFailure(t *testing.T) {
	ctx := context.Background()

	fs := &failingHealthStore{Store: memory.New()}
	eng := payroute.New(fs, payroute.WithRand(rand.New(rand.NewPCG(7, 7)))) //nolint:gosec // seeded draws for assertions
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	orgID := id.NewOrganizationID()
	org := tenancy.CallerIdentity{
		SubjectID:      "admin",
		ScopeType:      tenancy.ScopeOrganization,
		ScopeID:        orgID,
		OrganizationID: orgID,
	}
	company := &tenancy.Company{ClientID: id.NewClientID(), OrganizationID: orgID, Name: "Acme Payments"}
	if err := eng.CreateCompany(ctx, company); err != nil {
		t.Fatal(err)
	}

	mk := func(name string) *account.MerchantAccount {
		a := &account.MerchantAccount{CompanyID: company.ID, Name: name, Status: account.StatusActive, Currency: "usd"}
		if err := eng.CreateAccount(ctx, org, a); err != nil {
			t.Fatal(err)
		}
		return a
	}
	broken := mk("broken")
	other := mk("converges")

	// Seed failures through the store directly so derived health is stale
	// for both accounts when the sweep runs.
	for i := 0; i < 5; i++ {
		for _, a := range []*account.MerchantAccount{broken, other} {
			if _, err := fs.ApplyOutcome(ctx, a.ID, usage.Outcome{Amount: 100, Currency: "usd", Succeeded: false, Error: "declined"}, 0); err != nil {
				t.Fatal(err)
			}
		}
	}

	fs.failID = broken.ID
	if err := eng.SweepHealth(ctx); err != nil {
		t.Fatalf("sweep aborted on a failing account: %v", err)
	}

	got, err := eng.GetAccount(ctx, org, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Health.Status != account.HealthDown {
		t.Errorf("other account after sweep: got %s, want down", got.Health.Status)
	}

	b, err := eng.GetAccount(ctx, org, broken.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Health.Status != account.HealthHealthy {
		t.Errorf("rejected health write must leave prior status: got %s", b.Health.Status)
	}
}

func TestErrorClassification(t *testing.T) {
	if !payroute.IsRetryable(payroute.ErrConcurrentUpdateConflict) {
		t.Error("concurrent update conflicts are retryable")
	}
	if !errors.Is(payroute.ErrConcurrentUpdateConflict, store.ErrConcurrentUpdate) {
		t.Error("root sentinel must alias the store sentinel")
	}

	// Malformed identity and access denial are distinct taxonomy members.
	if payroute.IsScopeViolation(payroute.ErrInvalidCallerScope) {
		t.Error("a malformed caller identity is not an access denial")
	}

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.GetCompany(ctx, tenancy.CallerIdentity{SubjectID: "nobody"}, f.company.ID)
	if !errors.Is(err, payroute.ErrInvalidCallerScope) {
		t.Fatalf("expected ErrInvalidCallerScope, got %v", err)
	}
	if payroute.IsScopeViolation(err) {
		t.Error("malformed identity must not classify as a scope violation")
	}
}
