package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the payroute SQLite store.
var Migrations = migrate.NewGroup("payroute")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_payroute_companies",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payroute_companies (
    id              TEXT PRIMARY KEY,
    client_id       TEXT NOT NULL DEFAULT '',
    organization_id TEXT NOT NULL DEFAULT '',
    name            TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'active',
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_payroute_companies_client ON payroute_companies (client_id);
CREATE INDEX IF NOT EXISTS idx_payroute_companies_org ON payroute_companies (organization_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payroute_companies`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_payroute_accounts",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payroute_accounts (
    id                  TEXT PRIMARY KEY,
    company_id          TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'PENDING',
    environment         TEXT NOT NULL DEFAULT 'sandbox',
    currency            TEXT NOT NULL DEFAULT 'usd',
    limits              TEXT NOT NULL DEFAULT '{}',
    routing             TEXT NOT NULL DEFAULT '{}',
    tags                TEXT NOT NULL DEFAULT '[]',
    metadata            TEXT NOT NULL DEFAULT '{}',

    today_count         INTEGER NOT NULL DEFAULT 0,
    today_volume        INTEGER NOT NULL DEFAULT 0,
    today_success_count INTEGER NOT NULL DEFAULT 0,
    today_failure_count INTEGER NOT NULL DEFAULT 0,
    week_count          INTEGER NOT NULL DEFAULT 0,
    week_volume         INTEGER NOT NULL DEFAULT 0,
    month_count         INTEGER NOT NULL DEFAULT 0,
    month_volume        INTEGER NOT NULL DEFAULT 0,
    year_count          INTEGER NOT NULL DEFAULT 0,
    year_volume         INTEGER NOT NULL DEFAULT 0,

    window_count        INTEGER NOT NULL DEFAULT 0,
    window_volume       INTEGER NOT NULL DEFAULT 0,
    window_started_at   TIMESTAMP,

    last_transaction_at TIMESTAMP,
    usage_reset_at      TIMESTAMP,

    health_status       TEXT NOT NULL DEFAULT 'healthy',
    success_rate        REAL NOT NULL DEFAULT 0,
    avg_latency_ms      REAL NOT NULL DEFAULT 0,
    last_health_check   TIMESTAMP,
    last_error          TEXT NOT NULL DEFAULT '',

    created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_payroute_accounts_company ON payroute_accounts (company_id);
CREATE INDEX IF NOT EXISTS idx_payroute_accounts_company_status ON payroute_accounts (company_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS payroute_accounts`)
				return err
			},
		},
	)
}
