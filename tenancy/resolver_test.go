package tenancy_test

import (
	"context"
	"testing"

	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/tenancy"
)

// fakeDirectory is an in-memory CompanyDirectory for resolver tests.
type fakeDirectory struct {
	companies map[string]*tenancy.Company
}

func (d *fakeDirectory) GetCompany(_ context.Context, companyID id.CompanyID) (*tenancy.Company, error) {
	c, ok := d.companies[companyID.String()]
	if !ok {
		return nil, tenancy.ErrCompanyNotFound
	}
	return c, nil
}

func (d *fakeDirectory) ListCompanies(_ context.Context, filter tenancy.Filter) ([]*tenancy.Company, error) {
	var out []*tenancy.Company
	for _, c := range d.companies {
		switch filter.Kind {
		case tenancy.FilterByClient:
			if c.ClientID != filter.ClientID {
				continue
			}
		case tenancy.FilterByCompany:
			if c.ID != filter.CompanyID {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

type fixture struct {
	resolver *tenancy.Resolver

	orgID     id.OrganizationID
	clientA   id.ClientID
	clientB   id.ClientID
	companyA1 id.CompanyID
	companyA2 id.CompanyID
	companyB1 id.CompanyID
}

func newFixture() *fixture {
	f := &fixture{
		orgID:     id.NewOrganizationID(),
		clientA:   id.NewClientID(),
		clientB:   id.NewClientID(),
		companyA1: id.NewCompanyID(),
		companyA2: id.NewCompanyID(),
		companyB1: id.NewCompanyID(),
	}

	dir := &fakeDirectory{companies: map[string]*tenancy.Company{
		f.companyA1.String(): {ID: f.companyA1, ClientID: f.clientA, OrganizationID: f.orgID, Status: tenancy.CompanyActive},
		f.companyA2.String(): {ID: f.companyA2, ClientID: f.clientA, OrganizationID: f.orgID, Status: tenancy.CompanySuspended},
		f.companyB1.String(): {ID: f.companyB1, ClientID: f.clientB, OrganizationID: f.orgID, Status: tenancy.CompanyActive},
	}}
	f.resolver = tenancy.NewResolver(dir)
	return f
}

func (f *fixture) orgCaller() tenancy.CallerIdentity {
	return tenancy.CallerIdentity{
		SubjectID:      "user_org",
		ScopeType:      tenancy.ScopeOrganization,
		ScopeID:        f.orgID,
		OrganizationID: f.orgID,
	}
}

func (f *fixture) clientCaller(clientID id.ClientID) tenancy.CallerIdentity {
	return tenancy.CallerIdentity{
		SubjectID: "user_client",
		ScopeType: tenancy.ScopeClient,
		ScopeID:   clientID,
		ClientID:  clientID,
	}
}

func (f *fixture) companyCaller(companyID id.CompanyID) tenancy.CallerIdentity {
	return tenancy.CallerIdentity{
		SubjectID: "user_company",
		ScopeType: tenancy.ScopeCompany,
		ScopeID:   companyID,
		CompanyID: companyID,
	}
}

func TestCanAccessCompany(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  tenancy.CallerIdentity
		company id.CompanyID
		want    bool
	}{
		{"org sees any company", f.orgCaller(), f.companyB1, true},
		{"org sees nonexistent company", f.orgCaller(), id.NewCompanyID(), true},
		{"client sees own company", f.clientCaller(f.clientA), f.companyA1, true},
		{"client sees own suspended company", f.clientCaller(f.clientA), f.companyA2, true},
		{"client denied foreign company", f.clientCaller(f.clientA), f.companyB1, false},
		{"client denied nonexistent company", f.clientCaller(f.clientA), id.NewCompanyID(), false},
		{"company sees itself", f.companyCaller(f.companyA1), f.companyA1, true},
		{"company denied sibling", f.companyCaller(f.companyA1), f.companyA2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.resolver.CanAccessCompany(ctx, tt.caller, tt.company)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessCompanyInvalidCaller(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Scope type without the matching ID is invalid, not merely denied.
	caller := tenancy.CallerIdentity{
		SubjectID: "user_bad",
		ScopeType: tenancy.ScopeClient,
		ScopeID:   f.clientA,
	}
	if _, err := f.resolver.CanAccessCompany(ctx, caller, f.companyA1); err == nil {
		t.Fatal("expected invalid caller scope error")
	}

	caller = tenancy.CallerIdentity{SubjectID: "user_empty"}
	if _, err := f.resolver.CanAccessCompany(ctx, caller, f.companyA1); err == nil {
		t.Fatal("expected error for empty scope")
	}
}

func TestAccessibleCompanyIDs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("organization sees active companies", func(t *testing.T) {
		ids, err := f.resolver.AccessibleCompanyIDs(ctx, f.orgCaller())
		if err != nil {
			t.Fatal(err)
		}
		// companyA2 is suspended and filtered out at ORGANIZATION scope.
		if len(ids) != 2 {
			t.Fatalf("got %d companies, want 2", len(ids))
		}
		for _, cid := range ids {
			if cid == f.companyA2 {
				t.Error("suspended company should not be visible at org scope")
			}
		}
	})

	t.Run("client sees all own companies regardless of status", func(t *testing.T) {
		ids, err := f.resolver.AccessibleCompanyIDs(ctx, f.clientCaller(f.clientA))
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 2 {
			t.Fatalf("got %d companies, want 2", len(ids))
		}
	})

	t.Run("company sees exactly itself", func(t *testing.T) {
		ids, err := f.resolver.AccessibleCompanyIDs(ctx, f.companyCaller(f.companyA1))
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 1 || ids[0] != f.companyA1 {
			t.Fatalf("got %v, want exactly own company", ids)
		}
	})
}

func TestScopeFilter(t *testing.T) {
	f := newFixture()

	t.Run("organization is unrestricted", func(t *testing.T) {
		filter, err := tenancy.ScopeFilter(f.orgCaller(), "company_id")
		if err != nil {
			t.Fatal(err)
		}
		if !filter.IsUnrestricted() {
			t.Errorf("got kind %s, want unrestricted", filter.Kind)
		}
	})

	t.Run("client filters by client id", func(t *testing.T) {
		filter, err := tenancy.ScopeFilter(f.clientCaller(f.clientA), "company_id")
		if err != nil {
			t.Fatal(err)
		}
		if filter.Kind != tenancy.FilterByClient || filter.ClientID != f.clientA {
			t.Errorf("got %+v, want client filter for %s", filter, f.clientA)
		}
		if filter.Field != "company_id" {
			t.Errorf("Field: got %q, want company_id", filter.Field)
		}
	})

	t.Run("company filters by company id", func(t *testing.T) {
		filter, err := tenancy.ScopeFilter(f.companyCaller(f.companyA1), "company_id")
		if err != nil {
			t.Fatal(err)
		}
		if filter.Kind != tenancy.FilterByCompany || filter.CompanyID != f.companyA1 {
			t.Errorf("got %+v, want company filter for %s", filter, f.companyA1)
		}
	})

	t.Run("invalid caller rejected", func(t *testing.T) {
		if _, err := tenancy.ScopeFilter(tenancy.CallerIdentity{}, "company_id"); err == nil {
			t.Fatal("expected invalid caller scope error")
		}
	})
}
