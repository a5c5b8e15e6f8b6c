package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/institution"
	"vettinghub/internal/platform/db"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	txcontext "vettinghub/pkg/platform/tx"
)

// SQL persists institutions on either relational backend.
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

func (s *SQL) Create(ctx context.Context, inst *institution.Institution) error {
	query := s.handle.Rebind(`
		INSERT INTO institutions (id, org_id, name, sla_hours, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.q(ctx).ExecContext(ctx, query,
		inst.ID.String(), inst.OrgID.String(), inst.Name, inst.SLAHours,
		inst.CreatedAt.UTC().Format(db.TimeFormat))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert institution: %w", err)
	}
	return nil
}

func (s *SQL) FindByID(ctx context.Context, orgID domain.OrgID, id domain.InstitutionID) (*institution.Institution, error) {
	query := s.handle.Rebind(`
		SELECT id, org_id, name, sla_hours, created_at
		FROM institutions WHERE org_id = ? AND id = ?`)
	inst, err := scanInstitution(s.q(ctx).QueryRowContext(ctx, query, orgID.String(), id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return inst, err
}

func (s *SQL) ListByOrg(ctx context.Context, orgID domain.OrgID) ([]*institution.Institution, error) {
	query := s.handle.Rebind(`
		SELECT id, org_id, name, sla_hours, created_at
		FROM institutions WHERE org_id = ? ORDER BY name`)
	rows, err := s.q(ctx).QueryContext(ctx, query, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []*institution.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *SQL) Update(ctx context.Context, inst *institution.Institution) error {
	query := s.handle.Rebind(`
		UPDATE institutions SET name = ?, sla_hours = ? WHERE org_id = ? AND id = ?`)
	res, err := s.q(ctx).ExecContext(ctx, query,
		inst.Name, inst.SLAHours, inst.OrgID.String(), inst.ID.String())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update institution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstitution(row rowScanner) (*institution.Institution, error) {
	var (
		rawID, rawOrg, name, created string
		slaHours                     int
	)
	if err := row.Scan(&rawID, &rawOrg, &name, &slaHours, &created); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored institution id %q: %w", rawID, err)
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return nil, fmt.Errorf("stored institution org id %q: %w", rawOrg, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", created, err)
	}
	return &institution.Institution{
		ID:        domain.InstitutionID(id),
		OrgID:     domain.OrgID(orgID),
		Name:      name,
		SLAHours:  slaHours,
		CreatedAt: createdAt,
	}, nil
}
