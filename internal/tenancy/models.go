// Package tenancy enforces the organisation boundary.
//
// Every read and write in the hub happens under a Scope issued by the Guard.
// A Scope can only be obtained through Guard.Resolve, so code paths that
// bypass tenant filtering do not exist rather than being a forgotten branch.
package tenancy

import (
	"strings"
	"time"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// OrgRole is the role a membership grants within one organisation.
type OrgRole string

const (
	OrgRoleAdmin       OrgRole = "org_admin"
	OrgRoleRadiologist OrgRole = "radiologist"
	OrgRoleUser        OrgRole = "org_user"
)

// Valid reports whether the role is one of the three membership roles.
// Superuser is deliberately not an OrgRole: it is a platform flag on the user,
// orthogonal to membership.
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleAdmin, OrgRoleRadiologist, OrgRoleUser:
		return true
	}
	return false
}

// Organisation is the tenant boundary. Organisations are created by a
// platform operator and soft-disabled, never hard-deleted; their cases persist
// for the retention window.
//
// Invariants:
//   - Slug is non-empty, lowercase, and unique platform-wide
//   - A disabled organisation rejects all principal resolution, which cuts
//     off every downstream operation without cascading updates
type Organisation struct {
	ID         domain.OrgID
	Name       string
	Slug       string
	Active     bool
	CreatedAt  time.Time
	ModifiedAt *time.Time
}

// NewOrganisation validates invariants and constructs an active organisation.
func NewOrganisation(id domain.OrgID, name, slug string, now time.Time) (*Organisation, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(strings.ToLower(slug))
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organisation name is required")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "organisation name is too long")
	}
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organisation slug is required")
	}
	for _, c := range slug {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return nil, dErrors.New(dErrors.CodeValidation, "organisation slug must be lowercase alphanumeric with dashes")
		}
	}
	return &Organisation{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// CanDisable checks the disable transition.
func (o *Organisation) CanDisable() error {
	if !o.Active {
		return dErrors.New(dErrors.CodeConflict, "organisation is already disabled")
	}
	return nil
}

// ApplyDisable soft-disables the organisation. Call CanDisable first.
func (o *Organisation) ApplyDisable(now time.Time) {
	o.Active = false
	o.ModifiedAt = &now
}

// Membership binds a user to an organisation with a single role. A user may
// hold memberships in several organisations but acts within exactly one per
// request.
type Membership struct {
	ID        domain.MembershipID
	OrgID     domain.OrgID
	UserID    domain.UserID
	Role      OrgRole
	Active    bool
	CreatedAt time.Time
}

// NewMembership validates and constructs an active membership.
func NewMembership(id domain.MembershipID, orgID domain.OrgID, userID domain.UserID, role OrgRole, now time.Time) (*Membership, error) {
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown org role %q", role)
	}
	if orgID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "membership requires an organisation and a user")
	}
	return &Membership{
		ID:        id,
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// Principal is the authenticated identity a request acts as. Superuser is the
// platform escape hatch: it bypasses tenant scoping and every write it makes
// is audited with a cross-tenant marker.
type Principal struct {
	UserID    domain.UserID
	Superuser bool
}
