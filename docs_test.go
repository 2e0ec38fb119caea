package payroute_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/payroute"
	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/store/memory"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
	"github.com/xraph/payroute/usage"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		engine := payroute.New(store,
			payroute.WithLogger(slog.Default()),
			payroute.WithHealthSweepInterval(5*time.Minute),
		)

		// Start the engine
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		orgID := id.NewOrganizationID()
		clientID := id.NewClientID()

		// Every request carries an already-authenticated caller identity
		caller := payroute.CallerIdentity{
			SubjectID:      "user_123",
			ScopeType:      payroute.ScopeOrganization,
			ScopeID:        orgID,
			OrganizationID: orgID,
		}

		// Create a company
		company := &tenancy.Company{
			Name:           "Acme Retail",
			ClientID:       clientID,
			OrganizationID: orgID,
		}
		if err := engine.CreateCompany(ctx, company); err != nil {
			t.Fatal(err)
		}

		// Configure a merchant account with limits and routing
		daily := int64(1000)
		acct := &account.MerchantAccount{
			CompanyID:   company.ID,
			Name:        "Stripe Production",
			Status:      account.StatusActive,
			Environment: account.EnvProduction,
			Limits: account.Limits{
				MinTransactionAmount:  types.USD(100),     // $1.00
				MaxTransactionAmount:  types.USD(1000000), // $10,000.00
				DailyTransactionLimit: &daily,
			},
			Routing: account.RoutingConfig{
				Priority:  1,
				Weight:    100,
				IsDefault: true,
			},
		}
		if err := engine.CreateAccount(ctx, caller, acct); err != nil {
			t.Fatal(err)
		}

		// Selection picks one eligible account for a transaction
		sel, err := engine.SelectAccount(ctx, caller, company.ID, types.USD(4900))
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Selected account: %s\n", sel.Account.Name)

		// After the processor responds, commit the outcome back
		err = engine.RecordOutcome(ctx, caller, sel.Account.ID, usage.Outcome{
			Amount:    4900,
			Currency:  "usd",
			Succeeded: true,
			LatencyMs: 182,
		})
		if err != nil {
			t.Fatal(err)
		}

		// Usage counters reflect the committed transaction
		u, err := engine.CurrentUsage(ctx, caller, sel.Account.ID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Today: %d transactions, %s volume\n", u.TodayCount, u.TodayVolume.String())
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)      // $3.00
		_ = m2.Subtract(m1) // $1.00

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
