// Package tenancy models the organizational hierarchy and the caller scopes
// that restrict which companies a caller may see and route through.
//
// The hierarchy is ORGANIZATION ⊃ CLIENT ⊃ COMPANY ⊃ DEPARTMENT: a company
// belongs to exactly one client, and a client to exactly one organization.
package tenancy

import (
	"errors"

	"github.com/xraph/payroute/id"
	"github.com/xraph/payroute/types"
)

// Errors
var (
	ErrInvalidCallerScope = errors.New("tenancy: invalid caller scope")
	ErrCompanyNotFound    = errors.New("tenancy: company not found")
)

// Scope identifies a caller's position in the hierarchy.
type Scope string

const (
	ScopeOrganization Scope = "ORGANIZATION"
	ScopeClient       Scope = "CLIENT"
	ScopeCompany      Scope = "COMPANY"
	ScopeDepartment   Scope = "DEPARTMENT"
)

// CompanyStatus represents a company's lifecycle state.
type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanySuspended CompanyStatus = "suspended"
	CompanyClosed    CompanyStatus = "closed"
)

// Company is a node in the hierarchy that owns merchant accounts.
// Read-only reference data as far as this engine is concerned.
type Company struct {
	types.Entity
	ID             id.CompanyID      `json:"id"`
	ClientID       id.ClientID       `json:"client_id"`
	OrganizationID id.OrganizationID `json:"organization_id"`
	Name           string            `json:"name"`
	Status         CompanyStatus     `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CallerIdentity is the already-authenticated identity a request carries.
// Constructed once per request and never persisted by this engine.
type CallerIdentity struct {
	SubjectID      string            `json:"subject_id"`
	ScopeType      Scope             `json:"scope_type"`
	ScopeID        id.AnyID          `json:"scope_id"`
	OrganizationID id.OrganizationID `json:"organization_id,omitempty"`
	ClientID       id.ClientID       `json:"client_id,omitempty"`
	CompanyID      id.CompanyID      `json:"company_id,omitempty"`
	DepartmentID   id.DepartmentID   `json:"department_id,omitempty"`
}

// Validate reports whether the identity carries the IDs its scope requires.
func (c CallerIdentity) Validate() error {
	if c.ScopeID.IsNil() {
		return ErrInvalidCallerScope
	}

	switch c.ScopeType {
	case ScopeOrganization:
		if c.OrganizationID.IsNil() {
			return ErrInvalidCallerScope
		}
	case ScopeClient:
		if c.ClientID.IsNil() {
			return ErrInvalidCallerScope
		}
	case ScopeCompany:
		if c.CompanyID.IsNil() {
			return ErrInvalidCallerScope
		}
	case ScopeDepartment:
		if c.CompanyID.IsNil() || c.DepartmentID.IsNil() {
			return ErrInvalidCallerScope
		}
	default:
		return ErrInvalidCallerScope
	}
	return nil
}

// FilterKind discriminates the declarative scope filter shape.
type FilterKind string

const (
	// FilterNone means no restriction (ORGANIZATION scope).
	FilterNone FilterKind = "none"
	// FilterByClient restricts to companies owned by a client (CLIENT scope).
	FilterByClient FilterKind = "client"
	// FilterByCompany restricts to a single company (COMPANY/DEPARTMENT scope).
	FilterByCompany FilterKind = "company"
)

// Filter is the declarative scope filter produced by ScopeFilter.
// It is a data structure, not an executed query: the persistence layer
// interprets it when pre-filtering account and company queries.
type Filter struct {
	Kind      FilterKind   `json:"kind"`
	Field     string       `json:"field,omitempty"` // company-id field the store should constrain
	ClientID  id.ClientID  `json:"client_id,omitempty"`
	CompanyID id.CompanyID `json:"company_id,omitempty"`
}

// IsUnrestricted reports whether the filter imposes no constraint.
func (f Filter) IsUnrestricted() bool { return f.Kind == FilterNone }
