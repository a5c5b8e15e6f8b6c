package protocol

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, p *Protocol) error
	FindByName(ctx context.Context, orgID domain.OrgID, name string) (*Protocol, error)
	ListByOrg(ctx context.Context, orgID domain.OrgID, activeOnly bool) ([]*Protocol, error)
	Update(ctx context.Context, p *Protocol) error
}

// Service manages one organisation's catalogue at a time. Writes require an
// org admin (or superuser) scope; any member may read.
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

// NewService constructs the protocol service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the scoped organisation's catalogue sorted by name. The vet
// form passes activeOnly; admin views list everything.
func (s *Service) List(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, activeOnly bool) ([]*Protocol, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	protocols, err := s.store.ListByOrg(ctx, orgID, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list protocols")
	}
	return protocols, nil
}

// Upsert adds the named entry to the catalogue, reactivating it if a
// deactivated entry with that name already exists.
func (s *Service) Upsert(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, name string) (*Protocol, error) {
	if err := requireAdmin(scope, orgID); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	existing, err := s.store.FindByName(ctx, orgID, name)
	switch {
	case err == nil:
		if existing.Active {
			return existing, nil
		}
		existing.Active = true
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reactivate protocol")
		}
		s.logger.Info("protocol reactivated", "org_id", orgID.String(), "name", existing.Name)
		return existing, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol")
	}

	p, err := New(domain.ProtocolID(uuid.New()), orgID, name, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "protocol %q already exists", p.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create protocol")
	}
	s.logger.Info("protocol created", "org_id", orgID.String(), "name", p.Name)
	return p, nil
}

// Deactivate retires the named entry from the vet form. Cases already decided
// against it are untouched.
func (s *Service) Deactivate(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, name string) (*Protocol, error) {
	if err := requireAdmin(scope, orgID); err != nil {
		return nil, err
	}
	p, err := s.store.FindByName(ctx, orgID, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "protocol not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol")
	}
	if !p.Active {
		return p, nil
	}
	p.Active = false
	if err := s.store.Update(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate protocol")
	}
	s.logger.Info("protocol deactivated", "org_id", orgID.String(), "name", p.Name)
	return p, nil
}

// SeedDefaults installs the default catalogue for an organisation that has no
// entries yet. Idempotent: a non-empty catalogue is left alone.
func (s *Service) SeedDefaults(ctx context.Context, orgID domain.OrgID) error {
	existing, err := s.store.ListByOrg(ctx, orgID, false)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list protocols")
	}
	if len(existing) > 0 {
		return nil
	}
	now := requestcontext.Now(ctx)
	for _, name := range DefaultNames {
		p, err := New(domain.ProtocolID(uuid.New()), orgID, name, now)
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, p); err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed protocols")
		}
	}
	s.logger.Info("default protocols seeded", "org_id", orgID.String(), "count", len(DefaultNames))
	return nil
}

func requireAdmin(scope tenancy.Scope, orgID domain.OrgID) error {
	if !scope.AppliesTo(orgID) {
		return dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if scope.Role() != tenancy.RoleOrgAdmin && scope.Role() != tenancy.RoleSuperuser {
		return dErrors.New(dErrors.CodeAccessDenied, "protocol management requires an organisation admin")
	}
	return nil
}
