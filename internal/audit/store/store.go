// Package store persists audit events. Append assigns the per-case sequence
// number; callers run it inside the transaction of the mutation it records.
package store

import (
	"context"
	"time"

	"vettinghub/internal/audit"
	"vettinghub/pkg/domain"
)

// Store is the persistence surface for the audit trail. Events are append
// only; there is no update or delete.
type Store interface {
	// Append persists the event, assigning e.Seq as the next dense sequence
	// number for its case.
	Append(ctx context.Context, e *audit.Event) error
	// EventsForCase returns the case's trail ordered by occurrence time, with
	// the sequence number breaking ties.
	EventsForCase(ctx context.Context, caseID domain.CaseID) ([]*audit.Event, error)
	// Export returns events with from <= OccurredAt < to, oldest first. A nil
	// orgID spans all organisations.
	Export(ctx context.Context, orgID *domain.OrgID, from, to time.Time) ([]*audit.Event, error)
}
