//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vettinghub/internal/audit"
	auditstore "vettinghub/internal/audit/store"
	"vettinghub/internal/caseflow"
	"vettinghub/internal/caseflow/store"
	"vettinghub/internal/institution"
	institutionstore "vettinghub/internal/institution/store"
	"vettinghub/internal/tenancy"
	tenancystore "vettinghub/internal/tenancy/store"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/testutil/containers"
)

// PostgresStoreSuite runs the SQL stores against a real postgres instance.
// The sqlite paths share the same queries, so this covers the dialect
// differences: placeholder rebinding, unique violation detection and text
// timestamp ordering.
type PostgresStoreSuite struct {
	suite.Suite

	ctx    context.Context
	cases  *store.SQL
	events *auditstore.SQL

	tenants      *tenancystore.SQL
	institutions *institutionstore.SQL

	orgID  domain.OrgID
	instID domain.InstitutionID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pg := containers.NewPostgresContainer(t)

	s := &PostgresStoreSuite{
		ctx:          context.Background(),
		cases:        store.NewSQL(pg.Handle),
		events:       auditstore.NewSQL(pg.Handle),
		tenants:      tenancystore.NewSQL(pg.Handle),
		institutions: institutionstore.NewSQL(pg.Handle),
	}
	suite.Run(t, s)
}

// SetupTest gives every test its own organisation so rows never collide.
func (s *PostgresStoreSuite) SetupTest() {
	now := time.Now().UTC()
	org, err := tenancy.NewOrganisation(domain.OrgID(uuid.New()),
		"Trust "+uuid.NewString()[:8], "trust-"+uuid.NewString()[:8], now)
	s.Require().NoError(err)
	s.Require().NoError(s.tenants.CreateOrganisation(s.ctx, org))
	s.orgID = org.ID

	inst, err := institution.New(domain.InstitutionID(uuid.New()), s.orgID, "General Hospital", 48, now)
	s.Require().NoError(err)
	s.Require().NoError(s.institutions.Create(s.ctx, inst))
	s.instID = inst.ID
}

func (s *PostgresStoreSuite) newCase() *caseflow.Case {
	c, err := caseflow.NewCase(domain.NewCaseID(time.Now().UTC()), s.orgID, caseflow.Submission{
		Patient: caseflow.Patient{
			FirstName:  "Grace",
			Surname:    "Hopper",
			ReferralID: "REF-" + uuid.NewString()[:8],
		},
		InstitutionID:    s.instID,
		StudyDescription: "CT thorax",
		Attachment: caseflow.Attachment{
			UploadedFilename: "referral.pdf",
			StoredFilepath:   "/data/" + uuid.NewString(),
		},
	}, time.Now().UTC())
	s.Require().NoError(err)
	return c
}

func (s *PostgresStoreSuite) TestInsertAndScopedRead() {
	c := s.newCase()
	s.Require().NoError(s.cases.Insert(s.ctx, c))

	found, err := s.cases.FindByID(s.ctx, &s.orgID, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(caseflow.StatusPending, found.Status)
	s.Equal("Grace", found.Patient.FirstName)

	otherOrg := domain.OrgID(uuid.New())
	_, err = s.cases.FindByID(s.ctx, &otherOrg, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	unscoped, err := s.cases.FindByID(s.ctx, nil, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, unscoped.ID)
}

func (s *PostgresStoreSuite) TestDuplicateCaseID() {
	c := s.newCase()
	s.Require().NoError(s.cases.Insert(s.ctx, c))

	dup := s.newCase()
	dup.ID = c.ID
	s.ErrorIs(s.cases.Insert(s.ctx, dup), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestUpdateExpectingOptimisticCheck() {
	c := s.newCase()
	s.Require().NoError(s.cases.Insert(s.ctx, c))

	reviewer := domain.UserID(uuid.New())
	c.ReviewerID = &reviewer
	s.Require().NoError(s.cases.UpdateExpecting(s.ctx, c,
		caseflow.StatusPending, caseflow.StatusReopened))

	// First vet wins.
	now := time.Now().UTC()
	c.Status = caseflow.StatusVetted
	c.Decision = caseflow.DecisionApprove
	c.Protocol = "CT thorax, contrast"
	c.VettedAt = &now
	s.Require().NoError(s.cases.UpdateExpecting(s.ctx, c,
		caseflow.StatusPending, caseflow.StatusReopened))

	// A writer still holding the pending snapshot loses with a conflict.
	stale := *c
	stale.Decision = caseflow.DecisionReject
	s.ErrorIs(s.cases.UpdateExpecting(s.ctx, &stale,
		caseflow.StatusPending, caseflow.StatusReopened), sentinel.ErrConflict)

	// Unknown case id is not-found, not a conflict.
	ghost := s.newCase()
	s.ErrorIs(s.cases.UpdateExpecting(s.ctx, ghost,
		caseflow.StatusPending), sentinel.ErrNotFound)

	found, err := s.cases.FindByID(s.ctx, &s.orgID, c.ID)
	s.Require().NoError(err)
	s.Equal(caseflow.StatusVetted, found.Status)
	s.Equal(caseflow.DecisionApprove, found.Decision)
	s.Require().NotNil(found.VettedAt)
	s.WithinDuration(now, *found.VettedAt, time.Millisecond)
	s.Require().NotNil(found.ReviewerID)
	s.Equal(reviewer, *found.ReviewerID)
}

func (s *PostgresStoreSuite) TestListFiltersAndCounts() {
	var inserted []*caseflow.Case
	for i := 0; i < 3; i++ {
		c := s.newCase()
		c.Patient.Surname = fmt.Sprintf("Patient%d", i)
		s.Require().NoError(s.cases.Insert(s.ctx, c))
		inserted = append(inserted, c)
	}
	vetted := inserted[0]
	now := time.Now().UTC()
	vetted.Status = caseflow.StatusVetted
	vetted.Decision = caseflow.DecisionApprove
	vetted.Protocol = "protocol"
	vetted.VettedAt = &now
	s.Require().NoError(s.cases.UpdateExpecting(s.ctx, vetted, caseflow.StatusPending))

	pending := caseflow.StatusPending
	list, err := s.cases.List(s.ctx, &s.orgID, store.Filter{Status: &pending})
	s.Require().NoError(err)
	s.Len(list, 2)

	list, err = s.cases.List(s.ctx, &s.orgID, store.Filter{PatientQuery: "patient1"})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("Patient1", list[0].Patient.Surname)

	counts, err := s.cases.CountByStatus(s.ctx, &s.orgID)
	s.Require().NoError(err)
	s.Equal(2, counts[caseflow.StatusPending])
	s.Equal(1, counts[caseflow.StatusVetted])
}

func (s *PostgresStoreSuite) TestAuditSequenceAndExport() {
	c := s.newCase()
	s.Require().NoError(s.cases.Insert(s.ctx, c))

	actor := domain.UserID(uuid.New())
	base := time.Now().UTC()
	for i, eventType := range []audit.EventType{audit.EventSubmitted, audit.EventAssigned, audit.EventVetted} {
		e := &audit.Event{
			ID:         domain.EventID(uuid.New()),
			CaseID:     c.ID,
			OrgID:      s.orgID,
			Type:       eventType,
			ActorID:    actor,
			ActorRole:  tenancy.RoleOrgAdmin,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		}
		s.Require().NoError(s.events.Append(s.ctx, e))
		s.Equal(i+1, e.Seq)
	}

	trail, err := s.events.EventsForCase(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(trail, 3)
	for i, e := range trail {
		s.Equal(i+1, e.Seq)
	}
	s.Equal(audit.EventSubmitted, trail[0].Type)
	s.Equal(audit.EventVetted, trail[2].Type)

	// Half-open window excludes the last event.
	exported, err := s.events.Export(s.ctx, &s.orgID, base, base.Add(2*time.Second))
	s.Require().NoError(err)
	s.Len(exported, 2)

	otherOrg := domain.OrgID(uuid.New())
	exported, err = s.events.Export(s.ctx, &otherOrg, base, base.Add(time.Hour))
	s.Require().NoError(err)
	s.Empty(exported)
}

func (s *PostgresStoreSuite) TestOrganisationSlugUniqueness() {
	now := time.Now().UTC()
	org, err := tenancy.NewOrganisation(domain.OrgID(uuid.New()), "Duplicate Trust", "dup-"+uuid.NewString()[:8], now)
	s.Require().NoError(err)
	s.Require().NoError(s.tenants.CreateOrganisation(s.ctx, org))

	clash, err := tenancy.NewOrganisation(domain.OrgID(uuid.New()), "Another Trust", org.Slug, now)
	s.Require().NoError(err)
	s.ErrorIs(s.tenants.CreateOrganisation(s.ctx, clash), sentinel.ErrAlreadyUsed)
}
