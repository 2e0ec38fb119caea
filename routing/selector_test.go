package routing_test

import (
	"math/rand/v2"
	"testing"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/routing"
)

func newRng() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic draws for assertions
}

func acct(name string, cfg account.RoutingConfig) *account.MerchantAccount {
	return &account.MerchantAccount{
		ID:      id.NewAccountID(),
		Name:    name,
		Routing: cfg,
	}
}

func TestSelectEmpty(t *testing.T) {
	if got := routing.Select(nil, newRng()); got != nil {
		t.Fatalf("expected nil for empty candidates, got %s", got.Name)
	}
}

func TestSelectSingleCandidate(t *testing.T) {
	a := acct("only", account.RoutingConfig{Priority: 5, Weight: 10})
	got := routing.Select([]*account.MerchantAccount{a}, newRng())
	if got != a {
		t.Fatal("expected the only candidate to be selected")
	}
}

func TestSelectSingleDefaultShortCircuits(t *testing.T) {
	dflt := acct("default", account.RoutingConfig{Priority: 99, Weight: 1, IsDefault: true})
	better := acct("better-priority", account.RoutingConfig{Priority: 0, Weight: 100})

	// The default wins even against a lower-priority, higher-weight candidate.
	for i := 0; i < 20; i++ {
		got := routing.Select([]*account.MerchantAccount{better, dflt}, newRng())
		if got != dflt {
			t.Fatalf("draw %d: expected default to short-circuit, got %s", i, got.Name)
		}
	}
}

func TestSelectMultipleDefaultsCompeteNormally(t *testing.T) {
	d1 := acct("default-low", account.RoutingConfig{Priority: 1, Weight: 1, IsDefault: true})
	d2 := acct("default-high", account.RoutingConfig{Priority: 9, Weight: 1, IsDefault: true})
	rng := newRng()

	// Conflicting defaults fall back to priority tiers: the priority-1 default
	// must always win over the priority-9 one.
	for i := 0; i < 50; i++ {
		got := routing.Select([]*account.MerchantAccount{d2, d1}, rng)
		if got != d1 {
			t.Fatalf("draw %d: expected lowest priority tier, got %s", i, got.Name)
		}
	}
}

func TestSelectLowestPriorityTierWins(t *testing.T) {
	p0 := acct("tier-0", account.RoutingConfig{Priority: 0, Weight: 1})
	p1 := acct("tier-1", account.RoutingConfig{Priority: 1, Weight: 1000})
	rng := newRng()

	for i := 0; i < 50; i++ {
		got := routing.Select([]*account.MerchantAccount{p1, p0}, rng)
		if got != p0 {
			t.Fatalf("draw %d: expected tier 0 candidate, got %s", i, got.Name)
		}
	}
}

func TestSelectBackupOnlyWhenNoPrimary(t *testing.T) {
	primary := acct("primary", account.RoutingConfig{Priority: 1, Weight: 1})
	backup := acct("backup", account.RoutingConfig{Priority: 0, Weight: 100, IsBackupOnly: true})
	rng := newRng()

	// A surviving primary excludes backups entirely, regardless of priority.
	for i := 0; i < 50; i++ {
		got := routing.Select([]*account.MerchantAccount{backup, primary}, rng)
		if got != primary {
			t.Fatalf("draw %d: expected primary over backup, got %s", i, got.Name)
		}
	}

	// With only backups left, a backup is selected.
	got := routing.Select([]*account.MerchantAccount{backup}, rng)
	if got != backup {
		t.Fatal("expected backup when no primary survives")
	}
}

func TestSelectWeightedDistribution(t *testing.T) {
	heavy := acct("heavy", account.RoutingConfig{Priority: 0, Weight: 9})
	light := acct("light", account.RoutingConfig{Priority: 0, Weight: 1})
	rng := newRng()

	candidates := []*account.MerchantAccount{heavy, light}
	counts := map[string]int{}
	const draws = 10_000
	for i := 0; i < draws; i++ {
		counts[routing.Select(candidates, rng).Name]++
	}

	// Expect roughly 90/10. Allow a generous band; the draw is seeded so the
	// result is stable across runs.
	heavyShare := float64(counts["heavy"]) / draws
	if heavyShare < 0.85 || heavyShare > 0.95 {
		t.Errorf("heavy share: got %.3f, want ~0.90", heavyShare)
	}
	if counts["light"] == 0 {
		t.Error("light candidate never selected")
	}
}

func TestSelectZeroWeightStaysSelectable(t *testing.T) {
	a := acct("weighted", account.RoutingConfig{Priority: 0, Weight: 5})
	b := acct("zero-weight", account.RoutingConfig{Priority: 0, Weight: 0})
	rng := newRng()

	candidates := []*account.MerchantAccount{a, b}
	seen := map[string]bool{}
	for i := 0; i < 1_000; i++ {
		seen[routing.Select(candidates, rng).Name] = true
	}
	if !seen["zero-weight"] {
		t.Error("zero-weight candidate must remain selectable (effective weight 1)")
	}
}
