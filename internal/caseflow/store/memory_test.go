package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vettinghub/internal/caseflow"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

type CaseBackendSuite struct {
	suite.Suite
	backend *InMemory
	ctx     context.Context
	base    time.Time
}

func (s *CaseBackendSuite) SetupTest() {
	s.backend = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestCaseBackendSuite(t *testing.T) {
	suite.Run(t, new(CaseBackendSuite))
}

func (s *CaseBackendSuite) newCase(orgID domain.OrgID, createdAt time.Time) *caseflow.Case {
	c, err := caseflow.NewCase(domain.NewCaseID(createdAt), orgID, caseflow.Submission{
		Patient:       caseflow.Patient{FirstName: "Ada", Surname: "Okafor", ReferralID: "REF-1"},
		InstitutionID: domain.InstitutionID(uuid.New()),
		Attachment:    caseflow.Attachment{UploadedFilename: "r.pdf", StoredFilepath: "blobs/r.pdf"},
	}, createdAt)
	s.Require().NoError(err)
	return c
}

// TestInsertAndFind verifies the tenant filter on reads.
func (s *CaseBackendSuite) TestInsertAndFind() {
	orgA := domain.OrgID(uuid.New())
	orgB := domain.OrgID(uuid.New())
	c := s.newCase(orgA, s.base)
	s.Require().NoError(s.backend.Insert(s.ctx, c))

	s.Run("duplicate id is rejected", func() {
		err := s.backend.Insert(s.ctx, c)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("own org finds the case", func() {
		found, err := s.backend.FindByID(s.ctx, &orgA, c.ID)
		s.Require().NoError(err)
		s.Equal(c.ID, found.ID)
	})

	s.Run("foreign org filter reads as not found", func() {
		_, err := s.backend.FindByID(s.ctx, &orgB, c.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("nil filter spans tenants", func() {
		found, err := s.backend.FindByID(s.ctx, nil, c.ID)
		s.Require().NoError(err)
		s.Equal(c.ID, found.ID)
	})
}

// TestUpdateExpecting verifies the optimistic status check.
func (s *CaseBackendSuite) TestUpdateExpecting() {
	orgID := domain.OrgID(uuid.New())
	c := s.newCase(orgID, s.base)
	s.Require().NoError(s.backend.Insert(s.ctx, c))

	reviewer := domain.UserID(uuid.New())
	c.ApplyAssign(reviewer)
	s.Require().NoError(s.backend.UpdateExpecting(s.ctx, c, caseflow.StatusPending, caseflow.StatusReopened))

	now := s.base.Add(time.Hour)
	c.ApplyVet(caseflow.Verdict{Decision: caseflow.DecisionApprove, Protocol: "CT Head"}, now)
	s.Require().NoError(s.backend.UpdateExpecting(s.ctx, c, caseflow.StatusPending, caseflow.StatusReopened))

	s.Run("stale writer loses", func() {
		stale := *c
		stale.Status = caseflow.StatusRejected
		err := s.backend.UpdateExpecting(s.ctx, &stale, caseflow.StatusPending, caseflow.StatusReopened)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown case", func() {
		ghost := s.newCase(orgID, s.base)
		err := s.backend.UpdateExpecting(s.ctx, ghost, caseflow.StatusPending)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestListFilters verifies narrowing and ordering.
func (s *CaseBackendSuite) TestListFilters() {
	orgID := domain.OrgID(uuid.New())
	older := s.newCase(orgID, s.base)
	newer := s.newCase(orgID, s.base.Add(time.Hour))
	newer.Patient.Surname = "Varga"
	foreign := s.newCase(domain.OrgID(uuid.New()), s.base)
	for _, c := range []*caseflow.Case{older, newer, foreign} {
		s.Require().NoError(s.backend.Insert(s.ctx, c))
	}

	s.Run("newest first within the org", func() {
		cases, err := s.backend.List(s.ctx, &orgID, Filter{})
		s.Require().NoError(err)
		s.Require().Len(cases, 2)
		s.Equal(newer.ID, cases[0].ID)
	})

	s.Run("patient query matches surname case-insensitively", func() {
		cases, err := s.backend.List(s.ctx, &orgID, Filter{PatientQuery: "varga"})
		s.Require().NoError(err)
		s.Require().Len(cases, 1)
		s.Equal(newer.ID, cases[0].ID)
	})

	s.Run("status filter", func() {
		pending := caseflow.StatusPending
		cases, err := s.backend.List(s.ctx, &orgID, Filter{Status: &pending})
		s.Require().NoError(err)
		s.Len(cases, 2)

		vetted := caseflow.StatusVetted
		cases, err = s.backend.List(s.ctx, &orgID, Filter{Status: &vetted})
		s.Require().NoError(err)
		s.Empty(cases)
	})

	s.Run("counts group by status", func() {
		counts, err := s.backend.CountByStatus(s.ctx, &orgID)
		s.Require().NoError(err)
		s.Equal(2, counts[caseflow.StatusPending])
	})
}
