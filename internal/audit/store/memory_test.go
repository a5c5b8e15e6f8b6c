package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vettinghub/internal/audit"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

type AuditStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	base  time.Time
}

func (s *AuditStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) newEvent(caseID domain.CaseID, orgID domain.OrgID, at time.Time) *audit.Event {
	return &audit.Event{
		ID:         domain.EventID(uuid.New()),
		CaseID:     caseID,
		OrgID:      orgID,
		Type:       audit.EventSubmitted,
		ActorID:    domain.UserID(uuid.New()),
		ActorRole:  tenancy.RoleOrgAdmin,
		OccurredAt: at,
	}
}

// TestSequenceAssignment verifies Append numbers events densely per case.
func (s *AuditStoreSuite) TestSequenceAssignment() {
	orgID := domain.OrgID(uuid.New())
	caseA := domain.CaseID("20250310-AAAA")
	caseB := domain.CaseID("20250310-BBBB")

	for i := 0; i < 3; i++ {
		e := s.newEvent(caseA, orgID, s.base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Append(s.ctx, e))
		s.Equal(i+1, e.Seq)
	}

	e := s.newEvent(caseB, orgID, s.base)
	s.Require().NoError(s.store.Append(s.ctx, e))
	s.Equal(1, e.Seq, "sequence is per case, not global")
}

// TestOrdering verifies the trail sorts by time with seq breaking ties.
func (s *AuditStoreSuite) TestOrdering() {
	orgID := domain.OrgID(uuid.New())
	caseID := domain.CaseID("20250310-CCCC")

	// Two events share a timestamp; insertion order decides seq.
	first := s.newEvent(caseID, orgID, s.base)
	second := s.newEvent(caseID, orgID, s.base)
	third := s.newEvent(caseID, orgID, s.base.Add(time.Hour))
	for _, e := range []*audit.Event{first, second, third} {
		s.Require().NoError(s.store.Append(s.ctx, e))
	}

	events, err := s.store.EventsForCase(s.ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(first.ID, events[0].ID)
	s.Equal(second.ID, events[1].ID)
	s.Equal(third.ID, events[2].ID)
}

// TestExport verifies the window and tenant filters.
func (s *AuditStoreSuite) TestExport() {
	orgA := domain.OrgID(uuid.New())
	orgB := domain.OrgID(uuid.New())

	inWindow := s.newEvent(domain.CaseID("20250310-AAAA"), orgA, s.base.Add(time.Hour))
	tooEarly := s.newEvent(domain.CaseID("20250310-AAAA"), orgA, s.base.Add(-time.Hour))
	otherOrg := s.newEvent(domain.CaseID("20250310-BBBB"), orgB, s.base.Add(time.Hour))
	for _, e := range []*audit.Event{inWindow, tooEarly, otherOrg} {
		s.Require().NoError(s.store.Append(s.ctx, e))
	}

	s.Run("org filter", func() {
		events, err := s.store.Export(s.ctx, &orgA, s.base, s.base.Add(24*time.Hour))
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(inWindow.ID, events[0].ID)
	})

	s.Run("nil org spans all tenants", func() {
		events, err := s.store.Export(s.ctx, nil, s.base, s.base.Add(24*time.Hour))
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("end of window is exclusive", func() {
		events, err := s.store.Export(s.ctx, &orgA, s.base, s.base.Add(time.Hour))
		s.Require().NoError(err)
		s.Empty(events)
	})
}

// TestValidation verifies malformed events never enter the trail.
func (s *AuditStoreSuite) TestValidation() {
	e := s.newEvent("", domain.OrgID(uuid.New()), s.base)
	err := s.store.Append(s.ctx, e)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	e = s.newEvent(domain.CaseID("20250310-DDDD"), domain.OrgID(uuid.New()), s.base)
	e.Type = audit.EventType("deleted")
	err = s.store.Append(s.ctx, e)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
