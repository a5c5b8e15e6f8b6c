package caseflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vettinghub/internal/audit"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

func validSubmission() Submission {
	return Submission{
		Patient:          Patient{FirstName: "Ada", Surname: "Okafor", ReferralID: "REF-1042"},
		InstitutionID:    domain.InstitutionID(uuid.New()),
		StudyDescription: "MRI lumbar spine",
		Attachment:       Attachment{UploadedFilename: "referral.pdf", StoredFilepath: "blobs/ab/referral.pdf"},
	}
}

func newTestCase(t *testing.T) *Case {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c, err := NewCase(domain.NewCaseID(now), domain.OrgID(uuid.New()), validSubmission(), now)
	require.NoError(t, err)
	return c
}

func TestNewCaseValidation(t *testing.T) {
	now := time.Now().UTC()
	orgID := domain.OrgID(uuid.New())

	t.Run("valid submission is pending", func(t *testing.T) {
		c, err := NewCase(domain.NewCaseID(now), orgID, validSubmission(), now)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, c.Status)
		assert.Nil(t, c.VettedAt)
		assert.Nil(t, c.ReviewerID)
	})

	t.Run("missing attachment", func(t *testing.T) {
		sub := validSubmission()
		sub.Attachment = Attachment{}
		_, err := NewCase(domain.NewCaseID(now), orgID, sub, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("missing patient name", func(t *testing.T) {
		sub := validSubmission()
		sub.Patient.Surname = "  "
		_, err := NewCase(domain.NewCaseID(now), orgID, sub, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("missing institution", func(t *testing.T) {
		sub := validSubmission()
		sub.InstitutionID = domain.InstitutionID{}
		_, err := NewCase(domain.NewCaseID(now), orgID, sub, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestVetTransitions(t *testing.T) {
	reviewer := domain.UserID(uuid.New())
	now := time.Now().UTC()

	assigned := func(t *testing.T) *Case {
		c := newTestCase(t)
		require.NoError(t, c.CanAssign())
		c.ApplyAssign(reviewer)
		return c
	}

	t.Run("approve requires a protocol", func(t *testing.T) {
		c := assigned(t)
		err := c.CanVet(Verdict{Decision: DecisionApprove})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		require.NoError(t, c.CanVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}))
		c.ApplyVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}, now)
		assert.Equal(t, StatusVetted, c.Status)
		require.NotNil(t, c.VettedAt)
		assert.Equal(t, now, *c.VettedAt)
	})

	t.Run("reject requires a comment and clears protocol", func(t *testing.T) {
		c := assigned(t)
		c.Protocol = "draft protocol"

		err := c.CanVet(Verdict{Decision: DecisionReject})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		v := Verdict{Decision: DecisionReject, Comment: "insufficient clinical detail"}
		require.NoError(t, c.CanVet(v))
		c.ApplyVet(v, now)
		assert.Equal(t, StatusRejected, c.Status)
		assert.Empty(t, c.Protocol)
		assert.Equal(t, "insufficient clinical detail", c.DecisionComment)
		assert.NotNil(t, c.VettedAt)
	})

	t.Run("unknown decision", func(t *testing.T) {
		c := assigned(t)
		err := c.CanVet(Verdict{Decision: "Maybe"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unassigned case cannot be vetted", func(t *testing.T) {
		c := newTestCase(t)
		err := c.CanVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("decided case cannot be vetted again", func(t *testing.T) {
		c := assigned(t)
		c.ApplyVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}, now)
		err := c.CanVet(Verdict{Decision: DecisionReject, Comment: "late"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestReopen(t *testing.T) {
	reviewer := domain.UserID(uuid.New())
	now := time.Now().UTC()

	t.Run("reopening a pending case is an invalid transition", func(t *testing.T) {
		c := newTestCase(t)
		err := c.CanReopen()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("reopen clears the decision and keeps the reason", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyAssign(reviewer)
		c.ApplyVet(Verdict{Decision: DecisionApproveWithComment, Protocol: "CT Head", Comment: "check renal function"}, now)

		require.NoError(t, c.CanReopen())
		c.ApplyReopen("patient recalled for follow-up")

		assert.Equal(t, StatusReopened, c.Status)
		assert.Empty(t, string(c.Decision))
		assert.Empty(t, c.DecisionComment)
		assert.Empty(t, c.Protocol)
		assert.Nil(t, c.VettedAt)
		assert.Equal(t, "patient recalled for follow-up", c.ReopenReason)
	})

	t.Run("reopened case can be vetted again", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyAssign(reviewer)
		c.ApplyVet(Verdict{Decision: DecisionReject, Comment: "no attachment pages"}, now)
		c.ApplyReopen("pages re-scanned")

		require.NoError(t, c.CanVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}))
	})
}

func TestEditAndLock(t *testing.T) {
	reviewer := domain.UserID(uuid.New())
	now := time.Now().UTC()

	t.Run("edit updates fields and summarizes the change", func(t *testing.T) {
		c := newTestCase(t)
		require.NoError(t, c.CanEdit())

		desc := "MRI whole spine"
		summary := c.ApplyEdit(Amendment{StudyDescription: &desc})
		assert.Equal(t, "MRI whole spine", c.StudyDescription)
		assert.Equal(t, "changed study_description", summary)
		assert.Equal(t, StatusPending, c.Status, "edit never changes status")
	})

	t.Run("approved case is locked", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyAssign(reviewer)
		c.ApplyVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}, now)

		assert.True(t, c.IsLocked())
		err := c.CanEdit()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("approve with comment does not lock", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyAssign(reviewer)
		c.ApplyVet(Verdict{Decision: DecisionApproveWithComment, Protocol: "CT Head", Comment: "see notes"}, now)

		assert.False(t, c.IsLocked())
		// Still not editable: the case is decided.
		err := c.CanEdit()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("rejected case is not editable", func(t *testing.T) {
		c := newTestCase(t)
		c.ApplyAssign(reviewer)
		c.ApplyVet(Verdict{Decision: DecisionReject, Comment: "duplicate referral"}, now)

		assert.False(t, c.IsLocked())
		err := c.CanEdit()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestVettedAtInvariant(t *testing.T) {
	reviewer := domain.UserID(uuid.New())
	now := time.Now().UTC()
	c := newTestCase(t)

	check := func() {
		t.Helper()
		assert.Equal(t, c.Status.Terminal(), c.VettedAt != nil,
			"vetted_at set iff terminal, status=%s", c.Status)
	}

	check()
	c.ApplyAssign(reviewer)
	check()
	c.ApplyVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}, now)
	check()
	c.ApplyReopen("recall")
	check()
	c.ApplyVet(Verdict{Decision: DecisionReject, Comment: "withdrawn"}, now.Add(time.Hour))
	check()
}

func TestReplayLaw(t *testing.T) {
	// Walk a case through every transition and check the trail folds back to
	// the same status and decision at each step.
	reviewer := domain.UserID(uuid.New())
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := newTestCase(t)

	var events []*audit.Event
	record := func(eventType audit.EventType, decision Decision) {
		events = append(events, &audit.Event{
			CaseID:     c.ID,
			OrgID:      c.OrgID,
			Seq:        len(events) + 1,
			Type:       eventType,
			OccurredAt: now.Add(time.Duration(len(events)) * time.Minute),
			Decision:   string(decision),
		})
	}
	checkReplay := func() {
		t.Helper()
		status, decision := Replay(events)
		assert.Equal(t, c.Status, status)
		assert.Equal(t, c.Decision, decision)
	}

	record(audit.EventSubmitted, "")
	checkReplay()

	c.ApplyAssign(reviewer)
	record(audit.EventAssigned, "")
	checkReplay()

	c.ApplyEdit(Amendment{AdminNotes: ptr("urgent")})
	record(audit.EventEdited, "")
	checkReplay()

	c.ApplyVet(Verdict{Decision: DecisionReject, Comment: "illegible"}, now)
	record(audit.EventVetted, DecisionReject)
	checkReplay()

	c.ApplyReopen("re-scanned")
	record(audit.EventReopened, "")
	checkReplay()

	c.ApplyVet(Verdict{Decision: DecisionApprove, Protocol: "CT Head"}, now.Add(time.Hour))
	record(audit.EventVetted, DecisionApprove)
	checkReplay()
}

func ptr[T any](v T) *T { return &v }
