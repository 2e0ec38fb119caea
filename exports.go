package payroute

import (
	"github.com/xraph/payroute/admission"
	"github.com/xraph/payroute/routing"
	"github.com/xraph/payroute/tenancy"
	"github.com/xraph/payroute/types"
)

// Re-export common types for convenience so users don't have to import
// subpackages for the routine call paths.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// CallerIdentity is re-exported from tenancy package.
type CallerIdentity = tenancy.CallerIdentity

// Scope is re-exported from tenancy package.
type Scope = tenancy.Scope

// Selection is re-exported from routing package.
type Selection = routing.Selection

// Rejection is re-exported from routing package.
type Rejection = routing.Rejection

// AdmissionResult is re-exported from admission package.
type AdmissionResult = admission.Result

// Re-export caller scopes
const (
	ScopeOrganization = tenancy.ScopeOrganization
	ScopeClient       = tenancy.ScopeClient
	ScopeCompany      = tenancy.ScopeCompany
	ScopeDepartment   = tenancy.ScopeDepartment
)

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	NGN  = types.NGN
	KES  = types.KES
	Zero = types.Zero
	In   = types.In
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
