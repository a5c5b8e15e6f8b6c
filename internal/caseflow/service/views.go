package service

import (
	"context"
	"errors"
	"time"

	"vettinghub/internal/audit"
	"vettinghub/internal/caseflow"
	"vettinghub/internal/caseflow/store"
	"vettinghub/internal/sla"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

// View is a case decorated with turnaround figures for listings and
// dashboards.
type View struct {
	Case              *caseflow.Case
	SLAHours          int
	TurnaroundSeconds int64
	Turnaround        string
	Breached          bool
}

// Dashboard aggregates the queue for the admin landing page.
type Dashboard struct {
	Counts          map[caseflow.Status]int
	BreachedPending int
}

// ListCases returns the scope's cases, newest first, with turnaround figures
// computed against each case's institution window.
func (s *Service) ListCases(ctx context.Context, scope tenancy.Scope, filter store.Filter) ([]*View, error) {
	cases, err := s.repo(scope).List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, cases, requestcontext.Now(ctx))
}

// GetCase returns one decorated case visible under the scope.
func (s *Service) GetCase(ctx context.Context, scope tenancy.Scope, caseID domain.CaseID) (*View, error) {
	c, err := s.repo(scope).Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, []*caseflow.Case{c}, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// Dashboard returns per-status counts and the number of open cases past their
// window.
func (s *Service) Dashboard(ctx context.Context, scope tenancy.Scope) (*Dashboard, error) {
	repo := s.repo(scope)
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	breached := 0
	for _, status := range []caseflow.Status{caseflow.StatusPending, caseflow.StatusReopened} {
		open := status
		cases, err := repo.List(ctx, store.Filter{Status: &open})
		if err != nil {
			return nil, err
		}
		views, err := s.decorate(ctx, cases, now)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			if v.Breached {
				breached++
			}
		}
	}

	if s.metrics != nil {
		s.metrics.SLABreachedPending.Set(float64(breached))
	}
	return &Dashboard{Counts: counts, BreachedPending: breached}, nil
}

// Timeline returns the case's trail, oldest first. Visibility is decided by
// the case lookup: an out-of-tenant case reads as not found before the trail
// is touched.
func (s *Service) Timeline(ctx context.Context, scope tenancy.Scope, caseID domain.CaseID) ([]*audit.Event, error) {
	c, err := s.repo(scope).Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.recorder.EventsForCase(ctx, scope, c.OrgID, c.ID)
}

// ExportAudit returns flat event rows for the window [from, to).
func (s *Service) ExportAudit(ctx context.Context, scope tenancy.Scope, from, to time.Time) ([]*audit.Event, error) {
	return s.recorder.Export(ctx, scope, from, to)
}

// decorate computes turnaround figures. Institution windows are fetched once
// per (org, institution) pair; a dangling reference degrades to the default
// window rather than failing the listing.
func (s *Service) decorate(ctx context.Context, cases []*caseflow.Case, now time.Time) ([]*View, error) {
	type instKey struct {
		org  domain.OrgID
		inst domain.InstitutionID
	}
	windows := make(map[instKey]int)

	views := make([]*View, 0, len(cases))
	for _, c := range cases {
		key := instKey{org: c.OrgID, inst: c.InstitutionID}
		hours, ok := windows[key]
		if !ok {
			hours = sla.DefaultHours
			if inst, err := s.institutions.FindByID(ctx, c.OrgID, c.InstitutionID); err == nil {
				hours = inst.SLAHours
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				s.logger.Warn("institution lookup failed, using default window",
					"case_id", string(c.ID), "error", err)
			}
			windows[key] = hours
		}

		end := now
		if c.VettedAt != nil {
			end = *c.VettedAt
		}
		tat := sla.TurnaroundSeconds(c.CreatedAt, end)
		views = append(views, &View{
			Case:              c,
			SLAHours:          hours,
			TurnaroundSeconds: tat,
			Turnaround:        sla.FormatTurnaround(tat),
			Breached:          sla.IsBreached(c.CreatedAt, now, hours, c.Status.Open()),
		})
	}
	return views, nil
}
