// Package store persists cases behind a tenant-scoped repository.
//
// The Backend implementations (InMemory, SQL) take an explicit organisation
// filter per call, but services never touch them directly: they construct a
// Repository from a tenancy.Scope and the filter is derived from the token.
// There is no way to run an unfiltered query without holding an unscoped
// superuser token.
package store

import (
	"context"
	"errors"

	"vettinghub/internal/caseflow"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
)

// Filter narrows a case listing. Nil fields are ignored. PatientQuery matches
// the patient name and referral id, case-insensitively.
type Filter struct {
	Status        *caseflow.Status
	InstitutionID *domain.InstitutionID
	ReviewerID    *domain.UserID
	PatientQuery  string
}

// Backend is the raw persistence surface. orgFilter nil means no tenant
// filter; only the Repository decides when that is allowed.
type Backend interface {
	Insert(ctx context.Context, c *caseflow.Case) error
	FindByID(ctx context.Context, orgFilter *domain.OrgID, id domain.CaseID) (*caseflow.Case, error)
	// UpdateExpecting writes the case only while its stored status is one of
	// expect, returning sentinel.ErrConflict when the optimistic check loses.
	UpdateExpecting(ctx context.Context, c *caseflow.Case, expect ...caseflow.Status) error
	List(ctx context.Context, orgFilter *domain.OrgID, f Filter) ([]*caseflow.Case, error)
	CountByStatus(ctx context.Context, orgFilter *domain.OrgID) (map[caseflow.Status]int, error)
}

// Repository is the scoped view over a Backend. It is constructed per request
// from the resolved scope; the filter travels with the value and cannot be
// forgotten at a call site.
type Repository struct {
	backend Backend
	scope   tenancy.Scope
}

// NewRepository binds a backend to a scope.
func NewRepository(backend Backend, scope tenancy.Scope) *Repository {
	return &Repository{backend: backend, scope: scope}
}

// Scope returns the token the repository was built with.
func (r *Repository) Scope() tenancy.Scope { return r.scope }

func (r *Repository) orgFilter() *domain.OrgID {
	if orgID, ok := r.scope.OrgID(); ok {
		return &orgID
	}
	return nil
}

// Create inserts a case owned by an organisation the scope can reach.
func (r *Repository) Create(ctx context.Context, c *caseflow.Case) error {
	if !r.scope.AppliesTo(c.OrgID) {
		return dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if err := r.backend.Insert(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert case")
	}
	return nil
}

// Get loads one case visible under the scope. An out-of-tenant case is
// indistinguishable from a missing one.
func (r *Repository) Get(ctx context.Context, id domain.CaseID) (*caseflow.Case, error) {
	c, err := r.backend.FindByID(ctx, r.orgFilter(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	return c, nil
}

// UpdateExpecting writes the case back, conditioned on the stored status
// still being one of expect. A lost race is a Conflict, never an overwrite.
func (r *Repository) UpdateExpecting(ctx context.Context, c *caseflow.Case, expect ...caseflow.Status) error {
	if !r.scope.AppliesTo(c.OrgID) {
		return dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if err := r.backend.UpdateExpecting(ctx, c, expect...); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "case changed concurrently")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update case")
	}
	return nil
}

// List returns the scope's cases, newest first, narrowed by the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]*caseflow.Case, error) {
	cases, err := r.backend.List(ctx, r.orgFilter(), f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list cases")
	}
	return cases, nil
}

// CountByStatus returns per-status totals for the dashboard.
func (r *Repository) CountByStatus(ctx context.Context) (map[caseflow.Status]int, error) {
	counts, err := r.backend.CountByStatus(ctx, r.orgFilter())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count cases")
	}
	return counts, nil
}
