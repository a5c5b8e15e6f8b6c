// Package caseflow is the case lifecycle engine: the state machine carrying a
// referral from submission through assignment and vetting, with explicit
// reopening.
//
// Transitions follow the Can/Apply split: CanX validates the guard against
// current state and returns a typed error, ApplyX mutates. Services call the
// pair inside one transaction together with the audit write, so a state
// change and its event commit or fail as a unit.
package caseflow

import (
	"fmt"
	"strings"
	"time"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// Status is the case's position in the lifecycle. Reopened queues like
// pending but is kept distinct so dashboards and the trail can tell a fresh
// referral from a recalled one.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVetted   Status = "vetted"
	StatusRejected Status = "rejected"
	StatusReopened Status = "reopened"
)

// Open reports whether the case still awaits a decision.
func (s Status) Open() bool { return s == StatusPending || s == StatusReopened }

// Terminal reports whether a decision has been recorded.
func (s Status) Terminal() bool { return s == StatusVetted || s == StatusRejected }

// Decision is the reviewer's verdict. The strings are fixed: they appear in
// exports consumed by downstream billing.
type Decision string

const (
	DecisionApprove            Decision = "Approve"
	DecisionReject             Decision = "Reject"
	DecisionApproveWithComment Decision = "Approve with comment"
)

// Valid reports whether the decision is one of the three verdicts.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionApproveWithComment:
		return true
	}
	return false
}

// Approval reports whether the decision accepts the referral.
func (d Decision) Approval() bool {
	return d == DecisionApprove || d == DecisionApproveWithComment
}

// Patient is the identifying block of a referral.
type Patient struct {
	FirstName  string
	Surname    string
	ReferralID string
}

// Attachment references the referral document held by the storage
// collaborator. The reference may outlive the blob; reads degrade to metadata
// when it no longer resolves.
type Attachment struct {
	UploadedFilename string
	StoredFilepath   string
}

// Present reports whether a document reference exists.
func (a Attachment) Present() bool { return a.StoredFilepath != "" }

// Case is the workflow aggregate. OrgID is immutable after creation; the
// scoped repository enforces that no other tenant can reach it.
//
// Invariants:
//   - VettedAt is non-nil iff Status is vetted or rejected
//   - Decision fields are set iff Status is terminal
//   - Protocol is empty on rejected cases
type Case struct {
	ID               domain.CaseID
	OrgID            domain.OrgID
	Patient          Patient
	InstitutionID    domain.InstitutionID
	StudyDescription string
	AdminNotes       string
	ReopenReason     string
	Attachment       Attachment
	ReviewerID       *domain.UserID
	Status           Status
	Decision         Decision
	DecisionComment  string
	Protocol         string
	CreatedAt        time.Time
	VettedAt         *time.Time
}

// Submission is the input to case creation.
type Submission struct {
	Patient          Patient
	InstitutionID    domain.InstitutionID
	StudyDescription string
	AdminNotes       string
	Attachment       Attachment
}

// NewCase validates a submission and constructs a pending case.
func NewCase(id domain.CaseID, orgID domain.OrgID, sub Submission, now time.Time) (*Case, error) {
	sub.Patient.FirstName = strings.TrimSpace(sub.Patient.FirstName)
	sub.Patient.Surname = strings.TrimSpace(sub.Patient.Surname)
	sub.Patient.ReferralID = strings.TrimSpace(sub.Patient.ReferralID)
	if sub.Patient.FirstName == "" || sub.Patient.Surname == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "patient name is required")
	}
	if sub.Patient.ReferralID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "patient referral id is required")
	}
	if sub.InstitutionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "referring institution is required")
	}
	if !sub.Attachment.Present() {
		return nil, dErrors.New(dErrors.CodeValidation, "referral attachment is required")
	}
	return &Case{
		ID:               id,
		OrgID:            orgID,
		Patient:          sub.Patient,
		InstitutionID:    sub.InstitutionID,
		StudyDescription: strings.TrimSpace(sub.StudyDescription),
		AdminNotes:       strings.TrimSpace(sub.AdminNotes),
		Attachment:       sub.Attachment,
		Status:           StatusPending,
		CreatedAt:        now,
	}, nil
}

// IsLocked reports whether the case is closed to edits. A case decided with
// the strongest approval is locked; this is a business rule kept behind one
// predicate so it can change without touching transition code.
func (c *Case) IsLocked() bool { return c.Decision == DecisionApprove }

// CanAssign checks the assign guard. Assignment does not change status.
func (c *Case) CanAssign() error {
	if !c.Status.Open() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot assign a %s case", c.Status)
	}
	return nil
}

// ApplyAssign sets the reviewer. Call CanAssign first.
func (c *Case) ApplyAssign(reviewerID domain.UserID) {
	c.ReviewerID = &reviewerID
}

// Verdict is the input to vetting.
type Verdict struct {
	Decision Decision
	Protocol string
	Comment  string
}

// CanVet checks the vet guard: the case must still be open, the verdict must
// be one of the three decisions, a rejection needs a comment and an approval
// needs a protocol.
func (c *Case) CanVet(v Verdict) error {
	if !c.Status.Open() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot vet a %s case", c.Status)
	}
	if c.ReviewerID == nil {
		return dErrors.New(dErrors.CodeInvalidTransition, "case has no assigned reviewer")
	}
	if !v.Decision.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown decision %q", v.Decision)
	}
	if v.Decision == DecisionReject && strings.TrimSpace(v.Comment) == "" {
		return dErrors.New(dErrors.CodeValidation, "a rejection requires a comment")
	}
	if v.Decision.Approval() && strings.TrimSpace(v.Protocol) == "" {
		return dErrors.New(dErrors.CodeValidation, "an approval requires a protocol")
	}
	return nil
}

// ApplyVet records the verdict. A rejection clears any drafted protocol so a
// rejected case never carries one. Call CanVet first.
func (c *Case) ApplyVet(v Verdict, now time.Time) {
	c.Decision = v.Decision
	c.DecisionComment = strings.TrimSpace(v.Comment)
	if v.Decision == DecisionReject {
		c.Status = StatusRejected
		c.Protocol = ""
	} else {
		c.Status = StatusVetted
		c.Protocol = strings.TrimSpace(v.Protocol)
	}
	c.VettedAt = &now
}

// CanReopen checks the reopen guard: only a decided case can be recalled.
func (c *Case) CanReopen() error {
	if !c.Status.Terminal() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot reopen a %s case", c.Status)
	}
	return nil
}

// ApplyReopen clears the decision and returns the case to the queue. The
// reason is kept in its own field rather than appended to admin notes. Call
// CanReopen first.
func (c *Case) ApplyReopen(reason string) {
	c.Status = StatusReopened
	c.Decision = ""
	c.DecisionComment = ""
	c.Protocol = ""
	c.VettedAt = nil
	c.ReopenReason = strings.TrimSpace(reason)
}

// Amendment carries the editable fields. Nil pointers leave a field alone.
type Amendment struct {
	Patient          *Patient
	StudyDescription *string
	AdminNotes       *string
	InstitutionID    *domain.InstitutionID
}

// CanEdit checks the edit guard: the case must be open and not locked.
func (c *Case) CanEdit() error {
	if c.IsLocked() {
		return dErrors.New(dErrors.CodeInvalidTransition, "case is locked after approval")
	}
	if !c.Status.Open() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot edit a %s case", c.Status)
	}
	return nil
}

// ApplyEdit updates the amended fields and returns a short change summary for
// the trail. Call CanEdit first.
func (c *Case) ApplyEdit(a Amendment) string {
	var changed []string
	if a.Patient != nil {
		c.Patient = *a.Patient
		changed = append(changed, "patient")
	}
	if a.StudyDescription != nil {
		c.StudyDescription = strings.TrimSpace(*a.StudyDescription)
		changed = append(changed, "study_description")
	}
	if a.AdminNotes != nil {
		c.AdminNotes = strings.TrimSpace(*a.AdminNotes)
		changed = append(changed, "admin_notes")
	}
	if a.InstitutionID != nil {
		c.InstitutionID = *a.InstitutionID
		changed = append(changed, "institution")
	}
	if len(changed) == 0 {
		return "no fields changed"
	}
	return fmt.Sprintf("changed %s", strings.Join(changed, ", "))
}
