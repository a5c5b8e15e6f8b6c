// Package service orchestrates case lifecycle operations. Each operation
// resolves its guards, runs the transition and its audit write inside one
// unit of work, and maps store failures to typed errors.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vettinghub/internal/audit"
	"vettinghub/internal/caseflow"
	"vettinghub/internal/caseflow/store"
	"vettinghub/internal/institution"
	"vettinghub/internal/platform/db"
	"vettinghub/internal/platform/metrics"
	"vettinghub/internal/protocol"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

// InstitutionStore is the read surface over referring sites.
type InstitutionStore interface {
	FindByID(ctx context.Context, orgID domain.OrgID, id domain.InstitutionID) (*institution.Institution, error)
}

// MembershipStore is the read surface used to check reviewer eligibility.
type MembershipStore interface {
	FindByOrgUser(ctx context.Context, orgID domain.OrgID, userID domain.UserID) (*tenancy.Membership, error)
}

// ProtocolStore is the read surface over the organisation's catalogue.
// Approvals must name an active entry.
type ProtocolStore interface {
	FindByName(ctx context.Context, orgID domain.OrgID, name string) (*protocol.Protocol, error)
}

// submitRetries bounds the case id collision loop. Four random characters per
// day make a collision rare; hitting the bound means the generator is broken.
const submitRetries = 5

// Service is the case lifecycle engine's entry point.
type Service struct {
	backend      store.Backend
	recorder     *audit.Recorder
	institutions InstitutionStore
	memberships  MembershipStore
	protocols    ProtocolStore
	runner       db.TxRunner
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the lifecycle service.
func NewService(backend store.Backend, recorder *audit.Recorder, institutions InstitutionStore, memberships MembershipStore, protocols ProtocolStore, runner db.TxRunner, opts ...Option) *Service {
	s := &Service{
		backend:      backend,
		recorder:     recorder,
		institutions: institutions,
		memberships:  memberships,
		protocols:    protocols,
		runner:       runner,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) repo(scope tenancy.Scope) *store.Repository {
	return store.NewRepository(s.backend, scope)
}

func (s *Service) noteOverride(scope tenancy.Scope) {
	if scope.Unscoped() && s.metrics != nil {
		s.metrics.SuperuserOverrides.Inc()
	}
}

// Submit creates a pending case in orgID and writes its SUBMITTED event.
func (s *Service) Submit(ctx context.Context, scope tenancy.Scope, orgID domain.OrgID, sub caseflow.Submission) (*caseflow.Case, error) {
	if !scope.AppliesTo(orgID) {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "no access to organisation")
	}
	if !scope.Role().CanManageCases() {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "case submission requires an organisation admin")
	}

	// Institution must belong to the owning organisation, not merely exist.
	if _, err := s.institutions.FindByID(ctx, orgID, sub.InstitutionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "institution does not belong to the organisation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institution")
	}

	now := requestcontext.Now(ctx)
	repo := s.repo(scope)

	var created *caseflow.Case
	for attempt := 0; attempt < submitRetries; attempt++ {
		c, err := caseflow.NewCase(domain.NewCaseID(now), orgID, sub, now)
		if err != nil {
			return nil, err
		}
		txErr := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := repo.Create(ctx, c); err != nil {
				return err
			}
			_, err := s.recorder.Record(ctx, scope, audit.EventSubmitted, c.ID, orgID, audit.Payload{})
			return err
		})
		if txErr == nil {
			created = c
			break
		}
		if errors.Is(txErr, sentinel.ErrAlreadyUsed) {
			continue // id collision, mint another
		}
		return nil, txErr
	}
	if created == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "could not allocate a case id")
	}

	if s.metrics != nil {
		s.metrics.CasesSubmitted.Inc()
	}
	s.noteOverride(scope)
	s.logger.Info("case submitted",
		"case_id", string(created.ID), "org_id", orgID.String(), "actor", scope.Actor().String())
	return created, nil
}

// Assign sets the case's reviewer. The target must hold an active radiologist
// membership in the case's organisation; status is unchanged.
func (s *Service) Assign(ctx context.Context, scope tenancy.Scope, caseID domain.CaseID, reviewerID domain.UserID) error {
	if !scope.Role().CanManageCases() {
		return dErrors.New(dErrors.CodeAccessDenied, "case assignment requires an organisation admin")
	}
	repo := s.repo(scope)

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		c, err := repo.Get(ctx, caseID)
		if err != nil {
			return err
		}
		if err := c.CanAssign(); err != nil {
			return err
		}
		if err := s.checkReviewer(ctx, c.OrgID, reviewerID); err != nil {
			return err
		}
		c.ApplyAssign(reviewerID)
		if err := repo.UpdateExpecting(ctx, c, caseflow.StatusPending, caseflow.StatusReopened); err != nil {
			return err
		}
		_, err = s.recorder.Record(ctx, scope, audit.EventAssigned, c.ID, c.OrgID, audit.Payload{
			Comment: "assigned to " + reviewerID.String(),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.noteOverride(scope)
	s.logger.Info("case assigned", "case_id", string(caseID), "reviewer", reviewerID.String())
	return nil
}

func (s *Service) checkReviewer(ctx context.Context, orgID domain.OrgID, reviewerID domain.UserID) error {
	m, err := s.memberships.FindByOrgUser(ctx, orgID, reviewerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "reviewer is not a member of the organisation")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reviewer membership")
	}
	if !m.Active || m.Role != tenancy.OrgRoleRadiologist {
		return dErrors.New(dErrors.CodeValidation, "reviewer must be an active radiologist")
	}
	return nil
}

func (s *Service) checkProtocol(ctx context.Context, orgID domain.OrgID, name string) error {
	p, err := s.protocols.FindByName(ctx, orgID, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "protocol is not in the organisation's catalogue")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load protocol")
	}
	if !p.Active {
		return dErrors.New(dErrors.CodeValidation, "protocol has been deactivated")
	}
	return nil
}

// Vet records the verdict. Only the case's own assigned reviewer may vet it;
// a lost race against a concurrent Vet surfaces as Conflict and is never
// retried here.
func (s *Service) Vet(ctx context.Context, scope tenancy.Scope, caseID domain.CaseID, verdict caseflow.Verdict) (*caseflow.Case, error) {
	if !scope.Role().CanVet() {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "vetting requires a radiologist")
	}
	repo := s.repo(scope)
	now := requestcontext.Now(ctx)

	var vetted *caseflow.Case
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		c, err := repo.Get(ctx, caseID)
		if err != nil {
			return err
		}
		if c.ReviewerID == nil || *c.ReviewerID != scope.Actor() {
			return dErrors.New(dErrors.CodeAccessDenied, "only the assigned reviewer may vet this case")
		}
		if err := c.CanVet(verdict); err != nil {
			return err
		}
		if verdict.Decision.Approval() {
			if err := s.checkProtocol(ctx, c.OrgID, verdict.Protocol); err != nil {
				return err
			}
		}
		c.ApplyVet(verdict, now)
		if err := repo.UpdateExpecting(ctx, c, caseflow.StatusPending, caseflow.StatusReopened); err != nil {
			return err
		}
		_, err = s.recorder.Record(ctx, scope, audit.EventVetted, c.ID, c.OrgID, audit.Payload{
			Decision: string(c.Decision),
			Protocol: c.Protocol,
			Comment:  c.DecisionComment,
		})
		if err != nil {
			return err
		}
		vetted = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CasesVetted.WithLabelValues(string(vetted.Decision)).Inc()
	}
	s.noteOverride(scope)
	s.logger.Info("case vetted",
		"case_id", string(caseID), "decision", string(vetted.Decision), "actor", scope.Actor().String())
	return vetted, nil
}

// Reopen recalls a decided case into the queue. The reason is mandatory and
// kept on the case as well as in the trail.
func (s *Service) Reopen(ctx context.Context, scope tenancy.Scope, caseID domain.CaseID, reason string) (*caseflow.Case, error) {
	if !scope.Role().CanManageCases() {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "reopening requires an organisation admin")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a reopen reason is required")
	}
	repo := s.repo(scope)

	var reopened *caseflow.Case
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		c, err := repo.Get(ctx, caseID)
		if err != nil {
			return err
		}
		if err := c.CanReopen(); err != nil {
			return err
		}
		c.ApplyReopen(reason)
		if err := repo.UpdateExpecting(ctx, c, caseflow.StatusVetted, caseflow.StatusRejected); err != nil {
			return err
		}
		_, err = s.recorder.Record(ctx, scope, audit.EventReopened, c.ID, c.OrgID, audit.Payload{
			Comment: c.ReopenReason,
		})
		if err != nil {
			return err
		}
		reopened = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CasesReopened.Inc()
	}
	s.noteOverride(scope)
	s.logger.Info("case reopened", "case_id", string(caseID), "actor", scope.Actor().String())
	return reopened, nil
}

// Edit amends an open, unlocked case. Status never changes; the trail records
// a summary of which fields moved.
func (s *Service) Edit(ctx context.Context, scope tenancy.Scope, caseID domain.CaseID, amendment caseflow.Amendment) (*caseflow.Case, error) {
	if !scope.Role().CanManageCases() {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "case editing requires an organisation admin")
	}
	repo := s.repo(scope)

	var edited *caseflow.Case
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		c, err := repo.Get(ctx, caseID)
		if err != nil {
			return err
		}
		if err := c.CanEdit(); err != nil {
			return err
		}
		if amendment.InstitutionID != nil {
			if _, err := s.institutions.FindByID(ctx, c.OrgID, *amendment.InstitutionID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeValidation, "institution does not belong to the organisation")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institution")
			}
		}
		summary := c.ApplyEdit(amendment)
		if err := repo.UpdateExpecting(ctx, c, caseflow.StatusPending, caseflow.StatusReopened); err != nil {
			return err
		}
		_, err = s.recorder.Record(ctx, scope, audit.EventEdited, c.ID, c.OrgID, audit.Payload{
			Comment: summary,
		})
		if err != nil {
			return err
		}
		edited = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.noteOverride(scope)
	s.logger.Info("case edited", "case_id", string(caseID), "actor", scope.Actor().String())
	return edited, nil
}
