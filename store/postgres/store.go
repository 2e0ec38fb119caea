// Package postgres implements the payroute store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	payroutestore "github.com/xraph/payroute/store"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/usage"
)

// compile-time interface check
var _ payroutestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("payroute/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("payroute/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetCompany(ctx context.Context, companyID id.CompanyID) (*tenancy.Company, error) {
	m := new(companyModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", companyID.String()).
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, tenancy.ErrCompanyNotFound)
}

func (s *Store) DeleteCompany(ctx context.Context, companyID id.CompanyID) error {
	res, err := s.pg.NewDelete((*companyModel)(nil)).
		Where("id = $1", companyID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, tenancy.ErrCompanyNotFound)
}

func (s *Store) ListCompanies(ctx context.Context, filter tenancy.Filter) ([]*tenancy.Company, error) {
	var models []companyModel
	q := s.pg.NewSelect(&models)

	switch filter.Kind {
	case tenancy.FilterByClient:
		q = q.Where("client_id = $1", filter.ClientID.String())
	case tenancy.FilterByCompany:
		q = q.Where("id = $1", filter.CompanyID.String())
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.MerchantAccount, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", accountID.String()).
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, account.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.pg.NewDelete((*accountModel)(nil)).
		Where("id = $1", accountID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRows(res, account.ErrAccountNotFound)
}

func (s *Store) ListAccounts(ctx context.Context, companyID id.CompanyID, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	var models []accountModel
	q := s.pg.NewSelect(&models).Where("company_id = $1", companyID.String())

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	switch filter.Kind {
	case tenancy.FilterByClient:
		argIdx++
		q = q.Where(fmt.Sprintf("company_id IN (SELECT id FROM payroute_companies WHERE client_id = $%d)", argIdx),
			filter.ClientID.String())
	case tenancy.FilterByCompany:
		argIdx++
		q = q.Where(fmt.Sprintf("company_id = $%d", argIdx), filter.CompanyID.String())
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
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

// ApplyOutcome advances every counter with a single arithmetic UPDATE, so
// concurrent outcomes against the same account never lose an increment.
// Column references on the right-hand side read the pre-update row, which is
// what makes the cumulative latency mean and the window rollover correct
// under concurrency.
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

	q := s.pg.NewUpdate((*accountModel)(nil)).
		Set("today_count = today_count + 1").
		Set("today_volume = today_volume + $1", out.Amount).
		Set("today_success_count = today_success_count + $2", succ).
		Set("today_failure_count = today_failure_count + $3", fail).
		Set("week_count = week_count + 1").
		Set("week_volume = week_volume + $4", out.Amount).
		Set("month_count = month_count + 1").
		Set("month_volume = month_volume + $5", out.Amount).
		Set("year_count = year_count + 1").
		Set("year_volume = year_volume + $6", out.Amount).
		Set("avg_latency_ms = avg_latency_ms + ($7 - avg_latency_ms) / (today_success_count + today_failure_count + 1)", out.LatencyMs).
		Set("last_error = CASE WHEN $8 = '' THEN last_error ELSE $9 END", errStr, errStr).
		Set("last_transaction_at = $10", at).
		Set("updated_at = $11", at)
	argIdx := 11

	if velocityWindow > 0 {
		// The window is stale when it started one full window ago or earlier.
		cutoff := at.Add(-velocityWindow)
		q = q.Set(fmt.Sprintf(
			"window_count = CASE WHEN window_started_at IS NULL OR window_started_at <= $%d THEN 1 ELSE window_count + 1 END",
			argIdx+1), cutoff)
		q = q.Set(fmt.Sprintf(
			"window_volume = CASE WHEN window_started_at IS NULL OR window_started_at <= $%d THEN $%d ELSE window_volume + $%d END",
			argIdx+2, argIdx+3, argIdx+4), cutoff, out.Amount, out.Amount)
		q = q.Set(fmt.Sprintf(
			"window_started_at = CASE WHEN window_started_at IS NULL OR window_started_at <= $%d THEN $%d ELSE window_started_at END",
			argIdx+5, argIdx+6), cutoff, at)
		argIdx += 6
	}

	res, err := q.Where(fmt.Sprintf("id = $%d", argIdx+1), accountID.String()).Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRows(res, account.ErrAccountNotFound); err != nil {
		return nil, err
	}

	return s.GetAccount(ctx, accountID)
}

func (s *Store) ResetPeriod(ctx context.Context, period usage.Period, resetAt time.Time) (int64, error) {
	q := s.pg.NewUpdate((*accountModel)(nil))

	switch period {
	case usage.PeriodDay:
		// Only the daily rollover stamps usage_reset_at.
		q = q.Set("today_count = 0").
			Set("today_volume = 0").
			Set("today_success_count = 0").
			Set("today_failure_count = 0").
			Set("usage_reset_at = $1", resetAt).
			Set("updated_at = $2", resetAt)
	case usage.PeriodWeek:
		q = q.Set("week_count = 0").Set("week_volume = 0").
			Set("updated_at = $1", resetAt)
	case usage.PeriodMonth:
		q = q.Set("month_count = 0").Set("month_volume = 0").
			Set("updated_at = $1", resetAt)
	case usage.PeriodYear:
		q = q.Set("year_count = 0").Set("year_volume = 0").
			Set("updated_at = $1", resetAt)
	default:
		return 0, payroutestore.ErrUnknownPeriod
	}

	res, err := q.
		Where("id <> ''").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) UpdateHealth(ctx context.Context, accountID id.AccountID, h account.Health) error {
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("health_status = $1", string(h.Status)).
		Set("success_rate = $2", h.SuccessRate).
		Set("avg_latency_ms = $3", h.AvgLatencyMs).
		Set("last_health_check = $4", timePtr(h.LastHealthCheck)).
		Set("last_error = $5", h.LastError).
		Set("updated_at = $6", now()).
		Where("id = $7", accountID.String()).
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
