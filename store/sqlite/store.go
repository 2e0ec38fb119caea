// Package sqlite implements the payroute store on SQLite via Grove ORM.
// Suited to single-node deployments and integration tests; the atomicity
// guarantee for ApplyOutcome comes from SQLite's single-writer model.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	payroutestore "github.com/xraph/payroute/store"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/usage"
)

// compile-time interface check
var _ payroutestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("payroute/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("payroute/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Company Store ====================

func (s *Store) CreateCompany(ctx context.Context, c *tenancy.Company) error {
	m := toCompanyModel(c)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetCompany(ctx context.Context, companyID id.CompanyID) (*tenancy.Company, error) {
	m := new(companyModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", companyID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tenancy.ErrCompanyNotFound
		}
		return nil, err
	}
	return fromCompanyModel(m)
}

func (s *Store) UpdateCompany(ctx context.Context, c *tenancy.Company) error {
	m := toCompanyModel(c)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, tenancy.ErrCompanyNotFound)
}

func (s *Store) DeleteCompany(ctx context.Context, companyID id.CompanyID) error {
	res, err := s.sdb.NewDelete((*companyModel)(nil)).
		Where("id = ?", companyID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, tenancy.ErrCompanyNotFound)
}

func (s *Store) ListCompanies(ctx context.Context, filter tenancy.Filter) ([]*tenancy.Company, error) {
	var models []companyModel
	q := s.sdb.NewSelect(&models)

	switch filter.Kind {
	case tenancy.FilterByClient:
		q = q.Where("client_id = ?", filter.ClientID.String())
	case tenancy.FilterByCompany:
		q = q.Where("id = ?", filter.CompanyID.String())
	}

	if err := q.OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}

	companies := make([]*tenancy.Company, 0, len(models))
	for i := range models {
		c, err := fromCompanyModel(&models[i])
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.MerchantAccount) error {
	m := toAccountModel(a)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.MerchantAccount, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.MerchantAccount) error {
	m := toAccountModel(a)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, account.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.sdb.NewDelete((*accountModel)(nil)).
		Where("id = ?", accountID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, account.ErrAccountNotFound)
}

func (s *Store) ListAccounts(ctx context.Context, companyID id.CompanyID, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models).Where("company_id = ?", companyID.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return fromAccountModels(models)
}

func (s *Store) ListAccountsScoped(ctx context.Context, filter tenancy.Filter, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models)

	switch filter.Kind {
	case tenancy.FilterByClient:
		q = q.Where("company_id IN (SELECT id FROM payroute_companies WHERE client_id = ?)",
			filter.ClientID.String())
	case tenancy.FilterByCompany:
		q = q.Where("company_id = ?", filter.CompanyID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return fromAccountModels(models)
}

// ==================== Usage Store ====================

// ApplyOutcome advances every counter with a single arithmetic UPDATE.
// SQLite serializes writers, so concurrent outcomes against the same account
// never lose an increment; right-hand side column references read the
// pre-update row.
func (s *Store) ApplyOutcome(ctx context.Context, accountID id.AccountID, out usage.Outcome, velocityWindow time.Duration) (*account.MerchantAccount, error) {
	at := out.At
	if at.IsZero() {
		at = now()
	}

	var succ, fail int64
	errStr := ""
	if out.Succeeded {
		succ = 1
	} else {
		fail = 1
		errStr = out.Error
	}

	q := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("today_count = today_count + 1").
		Set("today_volume = today_volume + ?", out.Amount).
		Set("today_success_count = today_success_count + ?", succ).
		Set("today_failure_count = today_failure_count + ?", fail).
		Set("week_count = week_count + 1").
		Set("week_volume = week_volume + ?", out.Amount).
		Set("month_count = month_count + 1").
		Set("month_volume = month_volume + ?", out.Amount).
		Set("year_count = year_count + 1").
		Set("year_volume = year_volume + ?", out.Amount).
		Set("avg_latency_ms = avg_latency_ms + (? - avg_latency_ms) / (today_success_count + today_failure_count + 1)", out.LatencyMs).
		Set("last_error = CASE WHEN ? = '' THEN last_error ELSE ? END", errStr, errStr).
		Set("last_transaction_at = ?", at).
		Set("updated_at = ?", at)

	if velocityWindow > 0 {
		// The window is stale when it started one full window ago or earlier.
		cutoff := at.Add(-velocityWindow)
		q = q.Set("window_count = CASE WHEN window_started_at IS NULL OR window_started_at <= ? THEN 1 ELSE window_count + 1 END", cutoff).
			Set("window_volume = CASE WHEN window_started_at IS NULL OR window_started_at <= ? THEN ? ELSE window_volume + ? END", cutoff, out.Amount, out.Amount).
			Set("window_started_at = CASE WHEN window_started_at IS NULL OR window_started_at <= ? THEN ? ELSE window_started_at END", cutoff, at)
	}

	res, err := q.Where("id = ?", accountID.String()).Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRows(res, account.ErrAccountNotFound); err != nil {
		return nil, err
	}

	return s.GetAccount(ctx, accountID)
}

func (s *Store) ResetPeriod(ctx context.Context, period usage.Period, resetAt time.Time) (int64, error) {
	q := s.sdb.NewUpdate((*accountModel)(nil))

	switch period {
	case usage.PeriodDay:
		// Only the daily rollover stamps usage_reset_at.
		q = q.Set("today_count = 0").
			Set("today_volume = 0").
			Set("today_success_count = 0").
			Set("today_failure_count = 0").
			Set("usage_reset_at = ?", resetAt)
	case usage.PeriodWeek:
		q = q.Set("week_count = 0").Set("week_volume = 0")
	case usage.PeriodMonth:
		q = q.Set("month_count = 0").Set("month_volume = 0")
	case usage.PeriodYear:
		q = q.Set("year_count = 0").Set("year_volume = 0")
	default:
		return 0, payroutestore.ErrUnknownPeriod
	}

	res, err := q.
		Set("updated_at = ?", resetAt).
		Where("id <> ''").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) UpdateHealth(ctx context.Context, accountID id.AccountID, h account.Health) error {
	res, err := s.sdb.NewUpdate((*accountModel)(nil)).
		Set("health_status = ?", string(h.Status)).
		Set("success_rate = ?", h.SuccessRate).
		Set("avg_latency_ms = ?", h.AvgLatencyMs).
		Set("last_health_check = ?", timePtr(h.LastHealthCheck)).
		Set("last_error = ?", h.LastError).
		Set("updated_at = ?", now()).
		Where("id = ?", accountID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, account.ErrAccountNotFound)
}

// ==================== Helpers ====================

func fromAccountModels(models []accountModel) ([]*account.MerchantAccount, error) {
	accounts := make([]*account.MerchantAccount, 0, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func requireRows(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func now() time.Time {
	return time.Now().UTC()
}
