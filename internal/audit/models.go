// Package audit records the immutable event trail behind every case.
//
// Events are written in the same transaction as the state change they
// describe: a mutation that commits without its event, or an event without its
// mutation, cannot happen. Within one case events carry a dense sequence
// number assigned at write time, which breaks ties between events sharing a
// timestamp.
package audit

import (
	"time"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// EventType names the case mutation an event describes.
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventAssigned  EventType = "assigned"
	EventVetted    EventType = "vetted"
	EventReopened  EventType = "reopened"
	EventEdited    EventType = "edited"
)

// Valid reports whether the type is one of the recorded mutations.
func (t EventType) Valid() bool {
	switch t {
	case EventSubmitted, EventAssigned, EventVetted, EventReopened, EventEdited:
		return true
	}
	return false
}

// Event is one entry in a case's trail. Decision, Protocol and Comment are
// only set on vetted events; Reason only on reopened ones.
type Event struct {
	ID          domain.EventID
	CaseID      domain.CaseID
	OrgID       domain.OrgID
	Seq         int
	Type        EventType
	ActorID     domain.UserID
	ActorRole   tenancy.Role
	CrossTenant bool
	OccurredAt  time.Time
	Decision    string
	Protocol    string
	Comment     string
}

// Validate checks the event is well-formed before persistence.
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown event type %q", e.Type)
	}
	if e.CaseID == "" {
		return dErrors.New(dErrors.CodeValidation, "event requires a case")
	}
	if e.OrgID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "event requires an organisation")
	}
	if e.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "event requires an actor")
	}
	return nil
}
