package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
)

// ==================== Company models ====================

type companyModel struct {
	grove.BaseModel `grove:"table:payroute_companies"`

	ID             string            `grove:"id,pk"`
	ClientID       string            `grove:"client_id"`
	OrganizationID string            `grove:"organization_id"`
	Name           string            `grove:"name"`
	Status         string            `grove:"status"`
	Metadata       map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
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

// accountModel flattens the usage counters and health fields into columns so
// ApplyOutcome can advance them with a single arithmetic UPDATE.
type accountModel struct {
	grove.BaseModel `grove:"table:payroute_accounts"`

	ID          string            `grove:"id,pk"`
	CompanyID   string            `grove:"company_id"`
	Name        string            `grove:"name"`
	Status      string            `grove:"status"`
	Environment string            `grove:"environment"`
	Currency    string            `grove:"currency"`
	Limits      json.RawMessage   `grove:"limits,type:jsonb"`
	Routing     json.RawMessage   `grove:"routing,type:jsonb"`
	Tags        []string          `grove:"tags,type:jsonb"`
	Metadata    map[string]string `grove:"metadata,type:jsonb"`

	TodayCount        int64 `grove:"today_count"`
	TodayVolume       int64 `grove:"today_volume"`
	TodaySuccessCount int64 `grove:"today_success_count"`
	TodayFailureCount int64 `grove:"today_failure_count"`
	WeekCount         int64 `grove:"week_count"`
	WeekVolume        int64 `grove:"week_volume"`
	MonthCount        int64 `grove:"month_count"`
	MonthVolume       int64 `grove:"month_volume"`
	YearCount         int64 `grove:"year_count"`
	YearVolume        int64 `grove:"year_volume"`

	WindowCount     int64      `grove:"window_count"`
	WindowVolume    int64      `grove:"window_volume"`
	WindowStartedAt *time.Time `grove:"window_started_at"`

	LastTransactionAt *time.Time `grove:"last_transaction_at"`
	UsageResetAt      *time.Time `grove:"usage_reset_at"`

	HealthStatus    string     `grove:"health_status"`
	SuccessRate     float64    `grove:"success_rate"`
	AvgLatencyMs    float64    `grove:"avg_latency_ms"`
	LastHealthCheck *time.Time `grove:"last_health_check"`
	LastError       string     `grove:"last_error"`

	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.MerchantAccount) *accountModel {
	limits, _ := json.Marshal(a.Limits)   //nolint:errcheck // best-effort
	routing, _ := json.Marshal(a.Routing) //nolint:errcheck // best-effort

	m := &accountModel{
		ID:          a.ID.String(),
		CompanyID:   a.CompanyID.String(),
		Name:        a.Name,
		Status:      string(a.Status),
		Environment: string(a.Environment),
		Currency:    a.Currency,
		Limits:      limits,
		Routing:     routing,
		Tags:        a.Tags,
		Metadata:    a.Metadata,

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

	var limits account.Limits
	if len(m.Limits) > 0 {
		_ = json.Unmarshal(m.Limits, &limits) //nolint:errcheck // best-effort
	}
	var routing account.RoutingConfig
	if len(m.Routing) > 0 {
		_ = json.Unmarshal(m.Routing, &routing) //nolint:errcheck // best-effort
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
		Limits:      limits,
		Routing:     routing,
		Tags:        m.Tags,
		Metadata:    m.Metadata,
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
