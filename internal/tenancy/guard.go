package tenancy

import (
	"context"
	"errors"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
)

// Role is the effective role a resolved scope carries. Unlike OrgRole it
// includes Superuser, which is never stored on a membership.
type Role string

const (
	RoleOrgAdmin    Role = "org_admin"
	RoleRadiologist Role = "radiologist"
	RoleOrgUser     Role = "org_user"
	RoleSuperuser   Role = "superuser"
)

// CanManageCases reports whether the role may submit, edit, assign or reopen.
func (r Role) CanManageCases() bool { return r == RoleOrgAdmin || r == RoleSuperuser }

// CanVet reports whether the role may record vetting decisions.
func (r Role) CanVet() bool { return r == RoleRadiologist || r == RoleSuperuser }

// Scope is the capability token proving a principal may act within an
// organisation context. Fields are unexported: the only way to obtain a Scope
// is Guard.Resolve, which makes an unscoped repository unconstructible.
type Scope struct {
	orgID *domain.OrgID // nil means no tenant filter (superuser)
	role  Role
	actor domain.UserID
}

// OrgID returns the scoped organisation and true, or false for an unscoped
// superuser token.
func (s Scope) OrgID() (domain.OrgID, bool) {
	if s.orgID == nil {
		return domain.OrgID{}, false
	}
	return *s.orgID, true
}

// Role returns the effective role the token carries.
func (s Scope) Role() Role { return s.role }

// Actor returns the acting user.
func (s Scope) Actor() domain.UserID { return s.actor }

// Unscoped reports whether the token bypasses tenant filtering.
func (s Scope) Unscoped() bool { return s.orgID == nil }

// AppliesTo reports whether a record owned by orgID is visible under this
// scope.
func (s Scope) AppliesTo(orgID domain.OrgID) bool {
	return s.orgID == nil || *s.orgID == orgID
}

// OrganisationStore is the guard's read surface over organisations.
type OrganisationStore interface {
	FindByID(ctx context.Context, id domain.OrgID) (*Organisation, error)
}

// MembershipStore is the guard's read surface over memberships.
type MembershipStore interface {
	FindByOrgUser(ctx context.Context, orgID domain.OrgID, userID domain.UserID) (*Membership, error)
}

// Guard resolves principals into scopes. It is the single place role
// resolution happens; there are no fallback paths.
type Guard struct {
	orgs        OrganisationStore
	memberships MembershipStore
}

// NewGuard constructs a Guard over the given stores.
func NewGuard(orgs OrganisationStore, memberships MembershipStore) *Guard {
	return &Guard{orgs: orgs, memberships: memberships}
}

// Resolve produces a scoping token for the principal acting in orgID, or an
// access-denied error. Superusers receive an unscoped token regardless of
// membership; every write made under such a token must be audited with a
// cross-tenant marker by the caller.
func (g *Guard) Resolve(ctx context.Context, principal Principal, orgID domain.OrgID) (Scope, error) {
	if principal.UserID.IsNil() {
		return Scope{}, dErrors.New(dErrors.CodeAccessDenied, "unauthenticated principal")
	}
	if principal.Superuser {
		return Scope{orgID: nil, role: RoleSuperuser, actor: principal.UserID}, nil
	}

	org, err := g.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Scope{}, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
		}
		return Scope{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organisation")
	}
	if !org.Active {
		// A disabled org cuts off everyone, including its own admins.
		return Scope{}, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}

	role, err := g.resolveRole(ctx, principal, orgID)
	if err != nil {
		return Scope{}, err
	}
	scoped := orgID
	return Scope{orgID: &scoped, role: role, actor: principal.UserID}, nil
}

// resolveRole is the one mapping from membership to effective role.
func (g *Guard) resolveRole(ctx context.Context, principal Principal, orgID domain.OrgID) (Role, error) {
	membership, err := g.memberships.FindByOrgUser(ctx, orgID, principal.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	if !membership.Active {
		return "", dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	switch membership.Role {
	case OrgRoleAdmin:
		return RoleOrgAdmin, nil
	case OrgRoleRadiologist:
		return RoleRadiologist, nil
	case OrgRoleUser:
		return RoleOrgUser, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInternal, "membership carries unknown role %q", membership.Role)
	}
}
