// Package payroute provides a merchant account routing engine for payment
// processing in Go applications.
//
// Payroute is designed as a library, not a service. Import it directly into
// your payment layer and let it decide which configured merchant account
// handles which transaction. It provides:
//
//   - Tenant scope resolution over an ORGANIZATION ⊃ CLIENT ⊃ COMPANY ⊃
//     DEPARTMENT hierarchy
//   - Atomic per-account usage counters with calendar-period resets
//   - Admission control against amount, count, volume and velocity limits
//   - Health derivation from success/failure history with a periodic sweep
//   - Priority-tiered, weight-proportional account selection with backup
//     fallback
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/payroute"
//	    "github.com/xraph/payroute/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	engine := payroute.New(store)
//
//	// Start the engine (migrates and registers scheduled jobs)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Every request carries a CallerIdentity that scopes what it may touch:
//
//	caller := payroute.CallerIdentity{
//	    SubjectID: "user_123",
//	    ScopeType: payroute.ScopeClient,
//	    ScopeID:   clientID,
//	    ClientID:  clientID,
//	}
//
// Selection picks one eligible account for a transaction:
//
//	sel, err := engine.SelectAccount(ctx, caller, companyID, payroute.USD(4900))
//
// After the processor responds, the outcome is committed back:
//
//	err = engine.RecordOutcome(ctx, caller, sel.Account.ID, usage.Outcome{
//	    Amount:    4900,
//	    Succeeded: true,
//	    LatencyMs: 182,
//	})
//
// Selection is read-only and reserves no capacity; limits are re-validated
// inside RecordOutcome, which is the backstop for concurrent transactions
// racing a near-limit account.
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, pence for GBP, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	comp_01h2xcejqtf2nbrexx3vqjhp41  // Company ID
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Merchant account ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package payroute
