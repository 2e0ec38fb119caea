package mongo

import (
	"time"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
)

// ==================== Company models ====================

type companyModel struct {
	ID             string            `bson:"_id"`
	ClientID       string            `bson:"client_id"`
	OrganizationID string            `bson:"organization_id"`
	Name           string            `bson:"name"`
	Status         string            `bson:"status"`
	Metadata       map[string]string `bson:"metadata,omitempty"`
	CreatedAt      time.Time         `bson:"created_at"`
	UpdatedAt      time.Time         `bson:"updated_at"`
}

func toCompanyModel(c *tenancy.Company) *companyModel {
	return &companyModel{
		ID:             c.ID.String(),
		ClientID:       c.ClientID.String(),
		OrganizationID: c.OrganizationID.String(),
		Name:           c.Name,
		Status:         string(c.Status),
		Metadata:       c.Metadata,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func fromCompanyModel(m *companyModel) (*tenancy.Company, error) {
	companyID, err := id.ParseCompanyID(m.ID)
	if err != nil {
		return nil, err
	}
	clientID, err := id.ParseClientID(m.ClientID)
	if err != nil {
		return nil, err
	}
	orgID, err := id.ParseOrganizationID(m.OrganizationID)
	if err != nil {
		return nil, err
	}

	return &tenancy.Company{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             companyID,
		ClientID:       clientID,
		OrganizationID: orgID,
		Name:           m.Name,
		Status:         tenancy.CompanyStatus(m.Status),
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Account models ====================

type limitsModel struct {
	MinTransactionAmount int64 `bson:"min_transaction_amount"`
	MaxTransactionAmount int64 `bson:"max_transaction_amount"`

	DailyTransactionLimit   *int64 `bson:"daily_transaction_limit,omitempty"`
	WeeklyTransactionLimit  *int64 `bson:"weekly_transaction_limit,omitempty"`
	MonthlyTransactionLimit *int64 `bson:"monthly_transaction_limit,omitempty"`
	YearlyTransactionLimit  *int64 `bson:"yearly_transaction_limit,omitempty"`

	DailyVolumeLimit   *int64 `bson:"daily_volume_limit,omitempty"`
	WeeklyVolumeLimit  *int64 `bson:"weekly_volume_limit,omitempty"`
	MonthlyVolumeLimit *int64 `bson:"monthly_volume_limit,omitempty"`
	YearlyVolumeLimit  *int64 `bson:"yearly_volume_limit,omitempty"`

	VelocityWindowSec int64  `bson:"velocity_window_sec,omitempty"`
	VelocityMaxCount  int64  `bson:"velocity_max_count,omitempty"`
	VelocityMaxAmount *int64 `bson:"velocity_max_amount,omitempty"`
}

type routingModel struct {
	Priority     int      `bson:"priority"`
	Weight       int64    `bson:"weight"`
	IsDefault    bool     `bson:"is_default"`
	IsBackupOnly bool     `bson:"is_backup_only"`
	PoolIDs      []string `bson:"pool_ids,omitempty"`
}

// accountModel keeps the usage counters and health fields at the top level so
// ApplyOutcome can advance them in a single pipeline update.
type accountModel struct {
	ID          string            `bson:"_id"`
	CompanyID   string            `bson:"company_id"`
	Name        string            `bson:"name"`
	Status      string            `bson:"status"`
	Environment string            `bson:"environment"`
	Currency    string            `bson:"currency"`
	Limits      limitsModel       `bson:"limits"`
	Routing     routingModel      `bson:"routing"`
	Tags        []string          `bson:"tags,omitempty"`
	Metadata    map[string]string `bson:"metadata,omitempty"`

	TodayCount        int64 `bson:"today_count"`
	TodayVolume       int64 `bson:"today_volume"`
	TodaySuccessCount int64 `bson:"today_success_count"`
	TodayFailureCount int64 `bson:"today_failure_count"`
	WeekCount         int64 `bson:"week_count"`
	WeekVolume        int64 `bson:"week_volume"`
	MonthCount        int64 `bson:"month_count"`
	MonthVolume       int64 `bson:"month_volume"`
	YearCount         int64 `bson:"year_count"`
	YearVolume        int64 `bson:"year_volume"`

	WindowCount     int64      `bson:"window_count"`
	WindowVolume    int64      `bson:"window_volume"`
	WindowStartedAt *time.Time `bson:"window_started_at,omitempty"`

	LastTransactionAt *time.Time `bson:"last_transaction_at,omitempty"`
	UsageResetAt      *time.Time `bson:"usage_reset_at,omitempty"`

	HealthStatus    string     `bson:"health_status"`
	SuccessRate     float64    `bson:"success_rate"`
	AvgLatencyMs    float64    `bson:"avg_latency_ms"`
	LastHealthCheck *time.Time `bson:"last_health_check,omitempty"`
	LastError       string     `bson:"last_error,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toLimitsModel(l account.Limits) limitsModel {
	m := limitsModel{
		MinTransactionAmount:    l.MinTransactionAmount.Amount,
		MaxTransactionAmount:    l.MaxTransactionAmount.Amount,
		DailyTransactionLimit:   l.DailyTransactionLimit,
		WeeklyTransactionLimit:  l.WeeklyTransactionLimit,
		MonthlyTransactionLimit: l.MonthlyTransactionLimit,
		YearlyTransactionLimit:  l.YearlyTransactionLimit,
		DailyVolumeLimit:        moneyAmount(l.DailyVolumeLimit),
		WeeklyVolumeLimit:       moneyAmount(l.WeeklyVolumeLimit),
		MonthlyVolumeLimit:      moneyAmount(l.MonthlyVolumeLimit),
		YearlyVolumeLimit:       moneyAmount(l.YearlyVolumeLimit),
	}
	if l.Velocity != nil {
		m.VelocityWindowSec = int64(l.Velocity.Window.Seconds())
		m.VelocityMaxCount = l.Velocity.MaxCount
		m.VelocityMaxAmount = moneyAmount(l.Velocity.MaxAmount)
	}
	return m
}

func fromLimitsModel(m limitsModel, currency string) account.Limits {
	l := account.Limits{
		MinTransactionAmount:    types.In(currency, m.MinTransactionAmount),
		MaxTransactionAmount:    types.In(currency, m.MaxTransactionAmount),
		DailyTransactionLimit:   m.DailyTransactionLimit,
		WeeklyTransactionLimit:  m.WeeklyTransactionLimit,
		MonthlyTransactionLimit: m.MonthlyTransactionLimit,
		YearlyTransactionLimit:  m.YearlyTransactionLimit,
		DailyVolumeLimit:        moneyVal(m.DailyVolumeLimit, currency),
		WeeklyVolumeLimit:       moneyVal(m.WeeklyVolumeLimit, currency),
		MonthlyVolumeLimit:      moneyVal(m.MonthlyVolumeLimit, currency),
		YearlyVolumeLimit:       moneyVal(m.YearlyVolumeLimit, currency),
	}
	if m.VelocityWindowSec > 0 {
		l.Velocity = &account.VelocityWindow{
			Window:    time.Duration(m.VelocityWindowSec) * time.Second,
			MaxCount:  m.VelocityMaxCount,
			MaxAmount: moneyVal(m.VelocityMaxAmount, currency),
		}
	}
	return l
}

func toAccountModel(a *account.MerchantAccount) *accountModel {
	poolIDs := make([]string, 0, len(a.Routing.PoolIDs))
	for _, p := range a.Routing.PoolIDs {
		poolIDs = append(poolIDs, p.String())
	}

	m := &accountModel{
		ID:          a.ID.String(),
		CompanyID:   a.CompanyID.String(),
		Name:        a.Name,
		Status:      string(a.Status),
		Environment: string(a.Environment),
		Currency:    a.Currency,
		Limits:      toLimitsModel(a.Limits),
		Routing: routingModel{
			Priority:     a.Routing.Priority,
			Weight:       a.Routing.Weight,
			IsDefault:    a.Routing.IsDefault,
			IsBackupOnly: a.Routing.IsBackupOnly,
			PoolIDs:      poolIDs,
		},
		Tags:     a.Tags,
		Metadata: a.Metadata,

		TodayCount:        a.Usage.TodayCount,
		TodayVolume:       a.Usage.TodayVolume.Amount,
		TodaySuccessCount: a.Usage.TodaySuccessCount,
		TodayFailureCount: a.Usage.TodayFailureCount,
		WeekCount:         a.Usage.WeekCount,
		WeekVolume:        a.Usage.WeekVolume.Amount,
		MonthCount:        a.Usage.MonthCount,
		MonthVolume:       a.Usage.MonthVolume.Amount,
		YearCount:         a.Usage.YearCount,
		YearVolume:        a.Usage.YearVolume.Amount,
		WindowCount:       a.Usage.WindowCount,
		WindowVolume:      a.Usage.WindowVolume.Amount,

		HealthStatus: string(a.Health.Status),
		SuccessRate:  a.Health.SuccessRate,
		AvgLatencyMs: a.Health.AvgLatencyMs,
		LastError:    a.Health.LastError,

		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}

	m.WindowStartedAt = timePtr(a.Usage.WindowStartedAt)
	m.LastTransactionAt = timePtr(a.Usage.LastTransactionAt)
	m.UsageResetAt = timePtr(a.Usage.UsageResetAt)
	m.LastHealthCheck = timePtr(a.Health.LastHealthCheck)

	return m
}

func fromAccountModel(m *accountModel) (*account.MerchantAccount, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	companyID, err := id.ParseCompanyID(m.CompanyID)
	if err != nil {
		return nil, err
	}

	poolIDs := make([]id.PoolID, 0, len(m.Routing.PoolIDs))
	for _, p := range m.Routing.PoolIDs {
		poolID, err := id.ParsePoolID(p)
		if err != nil {
			return nil, err
		}
		poolIDs = append(poolIDs, poolID)
	}

	return &account.MerchantAccount{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          accountID,
		CompanyID:   companyID,
		Name:        m.Name,
		Status:      account.Status(m.Status),
		Environment: account.Environment(m.Environment),
		Currency:    m.Currency,
		Limits:      fromLimitsModel(m.Limits, m.Currency),
		Routing: account.RoutingConfig{
			Priority:     m.Routing.Priority,
			Weight:       m.Routing.Weight,
			IsDefault:    m.Routing.IsDefault,
			IsBackupOnly: m.Routing.IsBackupOnly,
			PoolIDs:      poolIDs,
		},
		Tags:     m.Tags,
		Metadata: m.Metadata,
		Usage: account.UsageCounters{
			TodayCount:        m.TodayCount,
			TodayVolume:       types.In(m.Currency, m.TodayVolume),
			TodaySuccessCount: m.TodaySuccessCount,
			TodayFailureCount: m.TodayFailureCount,
			WeekCount:         m.WeekCount,
			WeekVolume:        types.In(m.Currency, m.WeekVolume),
			MonthCount:        m.MonthCount,
			MonthVolume:       types.In(m.Currency, m.MonthVolume),
			YearCount:         m.YearCount,
			YearVolume:        types.In(m.Currency, m.YearVolume),
			WindowCount:       m.WindowCount,
			WindowVolume:      types.In(m.Currency, m.WindowVolume),
			WindowStartedAt:   timeVal(m.WindowStartedAt),
			LastTransactionAt: timeVal(m.LastTransactionAt),
			UsageResetAt:      timeVal(m.UsageResetAt),
		},
		Health: account.Health{
			Status:          account.HealthStatus(m.HealthStatus),
			SuccessRate:     m.SuccessRate,
			AvgLatencyMs:    m.AvgLatencyMs,
			LastHealthCheck: timeVal(m.LastHealthCheck),
			LastError:       m.LastError,
		},
	}, nil
}

func moneyAmount(m *types.Money) *int64 {
	if m == nil {
		return nil
	}
	v := m.Amount
	return &v
}

func moneyVal(v *int64, currency string) *types.Money {
	if v == nil {
		return nil
	}
	m := types.In(currency, *v)
	return &m
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
