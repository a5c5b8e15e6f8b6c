package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/platform/db"
	"vettinghub/internal/protocol"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	txcontext "vettinghub/pkg/platform/tx"
)

// SQL persists catalogue entries on either relational backend.
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

func (s *SQL) Create(ctx context.Context, p *protocol.Protocol) error {
	query := s.handle.Rebind(`
		INSERT INTO protocols (id, org_id, name, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.q(ctx).ExecContext(ctx, query,
		p.ID.String(), p.OrgID.String(), p.Name, boolToInt(p.Active),
		p.CreatedAt.UTC().Format(db.TimeFormat))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert protocol: %w", err)
	}
	return nil
}

func (s *SQL) FindByName(ctx context.Context, orgID domain.OrgID, name string) (*protocol.Protocol, error) {
	query := s.handle.Rebind(`
		SELECT id, org_id, name, is_active, created_at
		FROM protocols WHERE org_id = ? AND LOWER(name) = LOWER(?)`)
	p, err := scanProtocol(s.q(ctx).QueryRowContext(ctx, query, orgID.String(), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return p, err
}

func (s *SQL) ListByOrg(ctx context.Context, orgID domain.OrgID, activeOnly bool) ([]*protocol.Protocol, error) {
	query := `
		SELECT id, org_id, name, is_active, created_at
		FROM protocols WHERE org_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.q(ctx).QueryContext(ctx, s.handle.Rebind(query), orgID.String())
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	var out []*protocol.Protocol
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQL) Update(ctx context.Context, p *protocol.Protocol) error {
	query := s.handle.Rebind(`
		UPDATE protocols SET name = ?, is_active = ? WHERE org_id = ? AND id = ?`)
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.Name, boolToInt(p.Active), p.OrgID.String(), p.ID.String())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update protocol: %w", err)
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

func scanProtocol(row rowScanner) (*protocol.Protocol, error) {
	var (
		rawID, rawOrg, name, created string
		active                       int
	)
	if err := row.Scan(&rawID, &rawOrg, &name, &active, &created); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored protocol id %q: %w", rawID, err)
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return nil, fmt.Errorf("stored protocol org id %q: %w", rawOrg, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", created, err)
	}
	return &protocol.Protocol{
		ID:        domain.ProtocolID(id),
		OrgID:     domain.OrgID(orgID),
		Name:      name,
		Active:    active != 0,
		CreatedAt: createdAt,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
