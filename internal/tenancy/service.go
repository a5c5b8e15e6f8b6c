package tenancy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

// ServiceStore is the persistence surface the service needs.
type ServiceStore interface {
	OrganisationStore
	MembershipStore
	CreateOrganisation(ctx context.Context, org *Organisation) error
	FindBySlug(ctx context.Context, slug string) (*Organisation, error)
	ListOrganisations(ctx context.Context) ([]*Organisation, error)
	UpdateOrganisation(ctx context.Context, org *Organisation) error
	CreateMembership(ctx context.Context, m *Membership) error
	ListMembers(ctx context.Context, orgID domain.OrgID) ([]*Membership, error)
	UpdateMembership(ctx context.Context, m *Membership) error
}

// Service manages organisations and memberships. Creating or disabling an
// organisation is platform-operator work and requires a superuser principal;
// membership management is open to the organisation's admins as well.
type Service struct {
	store  ServiceStore
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs the tenancy service.
func NewService(store ServiceStore, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrganisation registers a new tenant. Superuser only.
func (s *Service) CreateOrganisation(ctx context.Context, principal Principal, name, slug string) (*Organisation, error) {
	if !principal.Superuser {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "organisation creation requires a platform operator")
	}
	org, err := NewOrganisation(domain.OrgID(uuid.New()), name, slug, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateOrganisation(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "organisation slug %q is taken", org.Slug)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organisation")
	}
	s.logger.Info("organisation created", "org_id", org.ID.String(), "slug", org.Slug)
	return org, nil
}

// DisableOrganisation soft-disables a tenant, cutting off all its principals.
// Superuser only.
func (s *Service) DisableOrganisation(ctx context.Context, principal Principal, id domain.OrgID) (*Organisation, error) {
	if !principal.Superuser {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "organisation disable requires a platform operator")
	}
	org, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organisation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organisation")
	}
	if err := org.CanDisable(); err != nil {
		return nil, err
	}
	org.ApplyDisable(requestcontext.Now(ctx))
	if err := s.store.UpdateOrganisation(ctx, org); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to disable organisation")
	}
	s.logger.Info("organisation disabled", "org_id", org.ID.String())
	return org, nil
}

// ListOrganisations returns every tenant. Superuser only; org members learn
// their own organisation through scope resolution, not enumeration.
func (s *Service) ListOrganisations(ctx context.Context, principal Principal) ([]*Organisation, error) {
	if !principal.Superuser {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "organisation listing requires a platform operator")
	}
	orgs, err := s.store.ListOrganisations(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organisations")
	}
	return orgs, nil
}

// AddMember grants a user a role within the scoped organisation. Requires an
// org admin or superuser scope; a superuser acting here is a cross-tenant
// write and is audited by the caller.
func (s *Service) AddMember(ctx context.Context, scope Scope, orgID domain.OrgID, userID domain.UserID, role OrgRole) (*Membership, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if scope.Role() != RoleOrgAdmin && scope.Role() != RoleSuperuser {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "membership management requires an organisation admin")
	}
	m, err := NewMembership(domain.MembershipID(uuid.New()), orgID, userID, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "user already belongs to this organisation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add member")
	}
	s.logger.Info("member added",
		"org_id", orgID.String(), "user_id", userID.String(), "role", string(role))
	return m, nil
}

// ListMembers returns the scoped organisation's memberships.
func (s *Service) ListMembers(ctx context.Context, scope Scope, orgID domain.OrgID) ([]*Membership, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	members, err := s.store.ListMembers(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

// RemoveMember deactivates a membership. Requires an org admin or superuser.
func (s *Service) RemoveMember(ctx context.Context, scope Scope, orgID domain.OrgID, userID domain.UserID) error {
	if !scope.AppliesTo(orgID) {
		return dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if scope.Role() != RoleOrgAdmin && scope.Role() != RoleSuperuser {
		return dErrors.New(dErrors.CodeAccessDenied, "membership management requires an organisation admin")
	}
	m, err := s.store.FindByOrgUser(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "membership not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	if !m.Active {
		return dErrors.New(dErrors.CodeConflict, "membership is already inactive")
	}
	m.Active = false
	if err := s.store.UpdateMembership(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove member")
	}
	s.logger.Info("member removed", "org_id", orgID.String(), "user_id", userID.String())
	return nil
}
