// Package mongo implements the payroute store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	payroutestore "github.com/xraph/payroute/store"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/usage"
)

// Collection name constants.
const (
	colCompanies = "payroute_companies"
	colAccounts  = "payroute_accounts"
)

// compile-time interface check
var _ payroutestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all payroute collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("payroute/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: create company: %w", err)
	}
	return nil
}

func (s *Store) GetCompany(ctx context.Context, companyID id.CompanyID) (*tenancy.Company, error) {
	var m companyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": companyID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tenancy.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("payroute/mongo: get company: %w", err)
	}
	return fromCompanyModel(&m)
}

func (s *Store) UpdateCompany(ctx context.Context, c *tenancy.Company) error {
	m := toCompanyModel(c)
	m.UpdatedAt = now()
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: update company: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tenancy.ErrCompanyNotFound
	}
	return nil
}

func (s *Store) DeleteCompany(ctx context.Context, companyID id.CompanyID) error {
	res, err := s.mdb.NewDelete((*companyModel)(nil)).
		Filter(bson.M{"_id": companyID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: delete company: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tenancy.ErrCompanyNotFound
	}
	return nil
}

func (s *Store) ListCompanies(ctx context.Context, filter tenancy.Filter) ([]*tenancy.Company, error) {
	var models []companyModel

	mongoFilter := bson.M{}
	switch filter.Kind {
	case tenancy.FilterByClient:
		mongoFilter["client_id"] = filter.ClientID.String()
	case tenancy.FilterByCompany:
		mongoFilter["_id"] = filter.CompanyID.String()
	}

	err := s.mdb.NewFind(&models).
		Filter(mongoFilter).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("payroute/mongo: list companies: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.MerchantAccount, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("payroute/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.MerchantAccount) error {
	m := toAccountModel(a)
	m.UpdatedAt = now()
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: update account: %w", err)
	}
	if res.MatchedCount() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.mdb.NewDelete((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: delete account: %w", err)
	}
	if res.DeletedCount() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, companyID id.CompanyID, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	filter := bson.M{"company_id": companyID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	return s.findAccounts(ctx, filter, opts)
}

func (s *Store) ListAccountsScoped(ctx context.Context, scope tenancy.Filter, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	filter := bson.M{}

	switch scope.Kind {
	case tenancy.FilterByClient:
		// Resolve the client's companies first; account documents carry only
		// the company reference.
		companies, err := s.ListCompanies(ctx, scope)
		if err != nil {
			return nil, err
		}
		companyIDs := make([]string, 0, len(companies))
		for _, c := range companies {
			companyIDs = append(companyIDs, c.ID.String())
		}
		filter["company_id"] = bson.M{"$in": companyIDs}
	case tenancy.FilterByCompany:
		filter["company_id"] = scope.CompanyID.String()
	}

	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	return s.findAccounts(ctx, filter, opts)
}

func (s *Store) findAccounts(ctx context.Context, filter bson.M, opts account.ListOpts) ([]*account.MerchantAccount, error) {
	var models []accountModel

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payroute/mongo: list accounts: %w", err)
	}

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

// ==================== Usage Store ====================

// ApplyOutcome advances every counter in a single pipeline update via
// FindOneAndUpdate, so concurrent outcomes against the same account never
// lose an increment. Field references inside the pipeline read the pre-update
// document, which keeps the cumulative latency mean and the window rollover
// correct under concurrency; the updated document comes back in the same
// round trip.
func (s *Store) ApplyOutcome(ctx context.Context, accountID id.AccountID, out usage.Outcome, velocityWindow time.Duration) (*account.MerchantAccount, error) {
	at := out.At
	if at.IsZero() {
		at = now()
	}

	var succ, fail int64
	if out.Succeeded {
		succ = 1
	} else {
		fail = 1
	}

	set := bson.M{
		"today_count":         bson.M{"$add": bson.A{"$today_count", 1}},
		"today_volume":        bson.M{"$add": bson.A{"$today_volume", out.Amount}},
		"today_success_count": bson.M{"$add": bson.A{"$today_success_count", succ}},
		"today_failure_count": bson.M{"$add": bson.A{"$today_failure_count", fail}},
		"week_count":          bson.M{"$add": bson.A{"$week_count", 1}},
		"week_volume":         bson.M{"$add": bson.A{"$week_volume", out.Amount}},
		"month_count":         bson.M{"$add": bson.A{"$month_count", 1}},
		"month_volume":        bson.M{"$add": bson.A{"$month_volume", out.Amount}},
		"year_count":          bson.M{"$add": bson.A{"$year_count", 1}},
		"year_volume":         bson.M{"$add": bson.A{"$year_volume", out.Amount}},
		"avg_latency_ms": bson.M{"$add": bson.A{
			"$avg_latency_ms",
			bson.M{"$divide": bson.A{
				bson.M{"$subtract": bson.A{out.LatencyMs, "$avg_latency_ms"}},
				bson.M{"$add": bson.A{"$today_success_count", "$today_failure_count", 1}},
			}},
		}},
		"last_transaction_at": at,
		"updated_at":          at,
	}

	if !out.Succeeded && out.Error != "" {
		set["last_error"] = out.Error
	}

	if velocityWindow > 0 {
		// The window is stale when it started one full window ago or earlier.
		cutoff := at.Add(-velocityWindow)
		stale := bson.M{"$or": bson.A{
			bson.M{"$eq": bson.A{"$window_started_at", nil}},
			bson.M{"$lte": bson.A{"$window_started_at", cutoff}},
		}}
		set["window_count"] = bson.M{"$cond": bson.A{stale, 1, bson.M{"$add": bson.A{"$window_count", 1}}}}
		set["window_volume"] = bson.M{"$cond": bson.A{stale, out.Amount, bson.M{"$add": bson.A{"$window_volume", out.Amount}}}}
		set["window_started_at"] = bson.M{"$cond": bson.A{stale, at, "$window_started_at"}}
	}

	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}

	var m accountModel
	err := s.mdb.Collection(colAccounts).
		FindOneAndUpdate(ctx,
			bson.M{"_id": accountID.String()},
			pipeline,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("payroute/mongo: apply outcome: %w", err)
	}

	return fromAccountModel(&m)
}

func (s *Store) ResetPeriod(ctx context.Context, period usage.Period, resetAt time.Time) (int64, error) {
	set := bson.M{
		"updated_at": resetAt,
	}

	switch period {
	case usage.PeriodDay:
		// Only the daily rollover stamps usage_reset_at.
		set["usage_reset_at"] = resetAt
		set["today_count"] = 0
		set["today_volume"] = 0
		set["today_success_count"] = 0
		set["today_failure_count"] = 0
	case usage.PeriodWeek:
		set["week_count"] = 0
		set["week_volume"] = 0
	case usage.PeriodMonth:
		set["month_count"] = 0
		set["month_volume"] = 0
	case usage.PeriodYear:
		set["year_count"] = 0
		set["year_volume"] = 0
	default:
		return 0, payroutestore.ErrUnknownPeriod
	}

	res, err := s.mdb.Collection(colAccounts).
		UpdateMany(ctx, bson.M{}, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("payroute/mongo: reset period: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) UpdateHealth(ctx context.Context, accountID id.AccountID, h account.Health) error {
	t := now()
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Set("health_status", string(h.Status)).
		Set("success_rate", h.SuccessRate).
		Set("avg_latency_ms", h.AvgLatencyMs).
		Set("last_health_check", h.LastHealthCheck).
		Set("last_error", h.LastError).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("payroute/mongo: update health: %w", err)
	}
	if res.MatchedCount() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all payroute collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCompanies: {
			{Keys: bson.D{{Key: "client_id", Value: 1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colAccounts: {
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "company_id", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "health_status", Value: 1}}},
		},
	}
}
