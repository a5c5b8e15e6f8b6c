package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/audit"
	"vettinghub/internal/platform/db"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	txcontext "vettinghub/pkg/platform/tx"
)

// SQL persists audit events on either relational backend.
type SQL struct {
	handle *db.Handle
}

// NewSQL constructs the SQL store over an open handle.
func NewSQL(handle *db.Handle) *SQL {
	return &SQL{handle: handle}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.handle.DB
}

// Append assigns the next sequence number and inserts. The count and the
// insert run on the same transaction when one is in ctx; the unique index on
// (case_id, seq) turns a lost race into a conflict instead of a gap.
func (s *SQL) Append(ctx context.Context, e *audit.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	q := s.q(ctx)

	var count int
	countQuery := s.handle.Rebind(`SELECT COUNT(*) FROM case_events WHERE case_id = ?`)
	if err := q.QueryRowContext(ctx, countQuery, string(e.CaseID)).Scan(&count); err != nil {
		return fmt.Errorf("count case events: %w", err)
	}
	e.Seq = count + 1

	insert := s.handle.Rebind(`
		INSERT INTO case_events
			(id, case_id, org_id, seq, event_type, actor_id, actor_role,
			 cross_tenant, occurred_at, decision, protocol, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := q.ExecContext(ctx, insert,
		e.ID.String(), string(e.CaseID), e.OrgID.String(), e.Seq, string(e.Type),
		e.ActorID.String(), string(e.ActorRole), boolToInt(e.CrossTenant),
		e.OccurredAt.UTC().Format(db.TimeFormat), e.Decision, e.Protocol, e.Comment)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert case event: %w", err)
	}
	return nil
}

const eventColumns = `id, case_id, org_id, seq, event_type, actor_id, actor_role,
	cross_tenant, occurred_at, decision, protocol, comment`

func (s *SQL) EventsForCase(ctx context.Context, caseID domain.CaseID) ([]*audit.Event, error) {
	query := s.handle.Rebind(`
		SELECT ` + eventColumns + ` FROM case_events
		WHERE case_id = ? ORDER BY occurred_at, seq`)
	rows, err := s.q(ctx).QueryContext(ctx, query, string(caseID))
	if err != nil {
		return nil, fmt.Errorf("query case events: %w", err)
	}
	return collectEvents(rows)
}

func (s *SQL) Export(ctx context.Context, orgID *domain.OrgID, from, to time.Time) ([]*audit.Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM case_events
		WHERE occurred_at >= ? AND occurred_at < ?`
	args := []any{from.UTC().Format(db.TimeFormat), to.UTC().Format(db.TimeFormat)}
	if orgID != nil {
		query += ` AND org_id = ?`
		args = append(args, orgID.String())
	}
	query += ` ORDER BY occurred_at, case_id, seq`

	rows, err := s.q(ctx).QueryContext(ctx, s.handle.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query export events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*audit.Event, error) {
	defer rows.Close()
	var out []*audit.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(rows *sql.Rows) (*audit.Event, error) {
	var (
		rawID, rawCase, rawOrg, eventType, rawActor, actorRole string
		occurred, decision, protocol, comment                  string
		seq, crossTenant                                       int
	)
	if err := rows.Scan(&rawID, &rawCase, &rawOrg, &seq, &eventType, &rawActor,
		&actorRole, &crossTenant, &occurred, &decision, &protocol, &comment); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored event id %q: %w", rawID, err)
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return nil, fmt.Errorf("stored event org id %q: %w", rawOrg, err)
	}
	actorID, err := uuid.Parse(rawActor)
	if err != nil {
		return nil, fmt.Errorf("stored event actor id %q: %w", rawActor, err)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, occurred)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", occurred, err)
	}
	return &audit.Event{
		ID:          domain.EventID(id),
		CaseID:      domain.CaseID(rawCase),
		OrgID:       domain.OrgID(orgID),
		Seq:         seq,
		Type:        audit.EventType(eventType),
		ActorID:     domain.UserID(actorID),
		ActorRole:   tenancy.Role(actorRole),
		CrossTenant: crossTenant != 0,
		OccurredAt:  occurredAt,
		Decision:    decision,
		Protocol:    protocol,
		Comment:     comment,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
