package institution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, inst *Institution) error
	FindByID(ctx context.Context, orgID domain.OrgID, id domain.InstitutionID) (*Institution, error)
	ListByOrg(ctx context.Context, orgID domain.OrgID) ([]*Institution, error)
	Update(ctx context.Context, inst *Institution) error
}

// Service manages the referring sites of one organisation at a time. Writes
// require an org admin (or superuser) scope; any member may read.
type Service struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs the institution service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a referring site in the scoped organisation.
func (s *Service) Create(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, name string, slaHours int) (*Institution, error) {
	if err := requireAdmin(scope, orgID); err != nil {
		return nil, err
	}
	inst, err := New(domain.InstitutionID(uuid.New()), orgID, name, slaHours, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, inst); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "institution %q already exists", inst.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create institution")
	}
	s.logger.Info("institution created",
		"org_id", orgID.String(), "institution_id", inst.ID.String(), "sla_hours", inst.SLAHours)
	return inst, nil
}

// Get returns one institution in the scoped organisation.
func (s *Service) Get(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, id domain.InstitutionID) (*Institution, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	inst, err := s.store.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "institution not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institution")
	}
	return inst, nil
}

// List returns the scoped organisation's institutions sorted by name.
func (s *Service) List(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID) ([]*Institution, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	insts, err := s.store.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list institutions")
	}
	return insts, nil
}

// UpdateSLA changes an institution's turnaround window. The new window applies
// to breach evaluation of all its cases from now on, including those already
// pending.
func (s *Service) UpdateSLA(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, id domain.InstitutionID, hours int) (*Institution, error) {
	if err := requireAdmin(scope, orgID); err != nil {
		return nil, err
	}
	inst, err := s.Get(ctx, scope, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := inst.SetSLA(hours); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, inst); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update institution")
	}
	s.logger.Info("institution sla updated",
		"org_id", orgID.String(), "institution_id", id.String(), "sla_hours", hours)
	return inst, nil
}

func requireAdmin(scope tenancy.Scope, orgID domain.OrgID) error {
	if !scope.AppliesTo(orgID) {
		return dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if scope.Role() != tenancy.RoleOrgAdmin && scope.Role() != tenancy.RoleSuperuser {
		return dErrors.New(dErrors.CodeAccessDenied, "institution management requires an organisation admin")
	}
	return nil
}
