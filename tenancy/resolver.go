package tenancy

import (
	"context"
	"errors"

	"github.com/xraph/payroute/id"
)

// CompanyDirectory is the read-only view of the hierarchy the resolver
// consults. Stores implement it; missing companies are reported with
// ErrCompanyNotFound.
type CompanyDirectory interface {
	GetCompany(ctx context.Context, companyID id.CompanyID) (*Company, error)
	ListCompanies(ctx context.Context, filter Filter) ([]*Company, error)
}

// Resolver computes company visibility for a caller identity.
// It is stateless; every method is a pure function of its inputs and the
// directory's current contents.
type Resolver struct {
	dir CompanyDirectory
}

// NewResolver creates a Resolver over the given directory.
func NewResolver(dir CompanyDirectory) *Resolver {
	return &Resolver{dir: dir}
}

// CanAccessCompany reports whether the caller may see and use companyID.
//
// ORGANIZATION scope returns true unconditionally — including for company IDs
// that do not exist. This mirrors the behavior the administrative surface has
// always relied on and is deliberately not re-derived from the hierarchy.
// CLIENT scope returns false (not an error) for a non-existent company.
func (r *Resolver) CanAccessCompany(ctx context.Context, caller CallerIdentity, companyID id.CompanyID) (bool, error) {
	if err := caller.Validate(); err != nil {
		return false, err
	}

	switch caller.ScopeType {
	case ScopeOrganization:
		return true, nil

	case ScopeClient:
		company, err := r.dir.GetCompany(ctx, companyID)
		if err != nil {
			if errors.Is(err, ErrCompanyNotFound) {
				return false, nil
			}
			return false, err
		}
		return company.ClientID == caller.ClientID, nil

	case ScopeCompany, ScopeDepartment:
		return companyID == caller.CompanyID, nil
	}

	return false, ErrInvalidCallerScope
}

// AccessibleCompanyIDs returns the set of company IDs visible to the caller.
// ORGANIZATION sees every active company; CLIENT sees all companies under its
// client regardless of status; COMPANY and DEPARTMENT see exactly their own.
func (r *Resolver) AccessibleCompanyIDs(ctx context.Context, caller CallerIdentity) ([]id.CompanyID, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}

	switch caller.ScopeType {
	case ScopeOrganization:
		companies, err := r.dir.ListCompanies(ctx, Filter{Kind: FilterNone})
		if err != nil {
			return nil, err
		}
		ids := make([]id.CompanyID, 0, len(companies))
		for _, c := range companies {
			if c.Status == CompanyActive {
				ids = append(ids, c.ID)
			}
		}
		return ids, nil

	case ScopeClient:
		companies, err := r.dir.ListCompanies(ctx, Filter{Kind: FilterByClient, ClientID: caller.ClientID})
		if err != nil {
			return nil, err
		}
		ids := make([]id.CompanyID, 0, len(companies))
		for _, c := range companies {
			ids = append(ids, c.ID)
		}
		return ids, nil

	case ScopeCompany, ScopeDepartment:
		return []id.CompanyID{caller.CompanyID}, nil
	}

	return nil, ErrInvalidCallerScope
}

// ScopeFilter builds the declarative filter the persistence layer applies to
// queries over entities that carry a company reference in companyField.
// The filter is data; nothing is executed here.
func ScopeFilter(caller CallerIdentity, companyField string) (Filter, error) {
	if err := caller.Validate(); err != nil {
		return Filter{}, err
	}

	switch caller.ScopeType {
	case ScopeOrganization:
		return Filter{Kind: FilterNone}, nil
	case ScopeClient:
		return Filter{Kind: FilterByClient, Field: companyField, ClientID: caller.ClientID}, nil
	case ScopeCompany, ScopeDepartment:
		return Filter{Kind: FilterByCompany, Field: companyField, CompanyID: caller.CompanyID}, nil
	}

	return Filter{}, ErrInvalidCallerScope
}
