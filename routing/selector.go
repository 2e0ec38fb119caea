// Package routing picks one merchant account out of a set of admitted
// candidates using priority tiers and weighted random selection.
package routing

import (
	"math/rand/v2"
	"sort"

	"github.com/xraph/payroute/account"
	"github.com/xraph/payroute/admission"
	"github.com/xraph/payroute/id"
)

// Rejection explains why one candidate was filtered out before selection.
type Rejection struct {
	AccountID id.AccountID      `json:"account_id"`
	Stage     string            `json:"stage"` // "status", "health", "limits"
	Reason    string            `json:"reason"`
	Limit     *admission.Result `json:"limit,omitempty"`
}

// Selection is the outcome of one routing decision.
type Selection struct {
	Account    *account.MerchantAccount `json:"account"`
	FromBackup bool                     `json:"from_backup"`
	Rejections []Rejection              `json:"rejections,omitempty"`
}

// Select picks an account from the given eligible candidates.
//
// Backup-only accounts participate only when no non-backup candidate exists.
// Within the chosen set: a single default account short-circuits selection;
// with zero or multiple defaults the lowest priority tier is taken and one
// account is drawn weight-proportionally within it. Zero and negative weights
// count as weight 1 so a misconfigured tier stays selectable.
//
// rng must not be nil; candidates is not mutated.
func Select(candidates []*account.MerchantAccount, rng *rand.Rand) *account.MerchantAccount {
	if len(candidates) == 0 {
		return nil
	}

	pool := preferred(candidates)

	// One default wins outright. Multiple defaults are a configuration
	// conflict, so the short-circuit is skipped and all of them compete on
	// priority and weight like everything else.
	var dflt *account.MerchantAccount
	defaults := 0
	for _, a := range pool {
		if a.Routing.IsDefault {
			defaults++
			dflt = a
		}
	}
	if defaults == 1 {
		return dflt
	}

	tier := lowestPriorityTier(pool)
	return weightedPick(tier, rng)
}

// preferred returns the non-backup candidates, falling back to the backups
// when no primary account survived filtering.
func preferred(candidates []*account.MerchantAccount) []*account.MerchantAccount {
	primary := make([]*account.MerchantAccount, 0, len(candidates))
	for _, a := range candidates {
		if !a.Routing.IsBackupOnly {
			primary = append(primary, a)
		}
	}
	if len(primary) > 0 {
		return primary
	}
	return candidates
}

// lowestPriorityTier returns all candidates sharing the numerically lowest
// priority, sorted by ID for a deterministic draw order.
func lowestPriorityTier(pool []*account.MerchantAccount) []*account.MerchantAccount {
	best := pool[0].Routing.Priority
	for _, a := range pool[1:] {
		if a.Routing.Priority < best {
			best = a.Routing.Priority
		}
	}
	tier := make([]*account.MerchantAccount, 0, len(pool))
	for _, a := range pool {
		if a.Routing.Priority == best {
			tier = append(tier, a)
		}
	}
	sort.Slice(tier, func(i, j int) bool {
		return tier[i].ID.String() < tier[j].ID.String()
	})
	return tier
}

func effectiveWeight(a *account.MerchantAccount) int64 {
	if w := a.Routing.Weight; w > 0 {
		return w
	}
	return 1
}

func weightedPick(tier []*account.MerchantAccount, rng *rand.Rand) *account.MerchantAccount {
	if len(tier) == 1 {
		return tier[0]
	}
	var total int64
	for _, a := range tier {
		total += effectiveWeight(a)
	}
	n := rng.Int64N(total)
	for _, a := range tier {
		n -= effectiveWeight(a)
		if n < 0 {
			return a
		}
	}
	return tier[len(tier)-1] // unreachable
}
