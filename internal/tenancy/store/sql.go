package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/platform/db"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	txcontext "vettinghub/pkg/platform/tx"
)

// SQL persists tenancy records on either relational backend.
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

// q returns the in-flight transaction when one is carried in ctx, else the
// pool.
func (s *SQL) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.handle.DB
}

func fmtTime(t time.Time) string { return t.UTC().Format(db.TimeFormat) }

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", raw, err)
	}
	return t, nil
}

func (s *SQL) CreateOrganisation(ctx context.Context, org *tenancy.Organisation) error {
	query := s.handle.Rebind(`
		INSERT INTO organisations (id, name, slug, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.q(ctx).ExecContext(ctx, query,
		org.ID.String(), org.Name, org.Slug, boolToInt(org.Active), fmtTime(org.CreatedAt))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert organisation: %w", err)
	}
	return nil
}

const orgColumns = `id, name, slug, is_active, created_at, modified_at`

func (s *SQL) FindByID(ctx context.Context, id domain.OrgID) (*tenancy.Organisation, error) {
	query := s.handle.Rebind(`SELECT ` + orgColumns + ` FROM organisations WHERE id = ?`)
	return s.scanOrg(s.q(ctx).QueryRowContext(ctx, query, id.String()))
}

func (s *SQL) FindBySlug(ctx context.Context, slug string) (*tenancy.Organisation, error) {
	query := s.handle.Rebind(`SELECT ` + orgColumns + ` FROM organisations WHERE slug = ?`)
	return s.scanOrg(s.q(ctx).QueryRowContext(ctx, query, slug))
}

func (s *SQL) ListOrganisations(ctx context.Context) ([]*tenancy.Organisation, error) {
	query := `SELECT ` + orgColumns + ` FROM organisations ORDER BY name`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organisations: %w", err)
	}
	defer rows.Close()

	var out []*tenancy.Organisation
	for rows.Next() {
		org, err := scanOrgRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (s *SQL) UpdateOrganisation(ctx context.Context, org *tenancy.Organisation) error {
	var modified any
	if org.ModifiedAt != nil {
		modified = fmtTime(*org.ModifiedAt)
	}
	query := s.handle.Rebind(`
		UPDATE organisations SET name = ?, slug = ?, is_active = ?, modified_at = ?
		WHERE id = ?`)
	res, err := s.q(ctx).ExecContext(ctx, query,
		org.Name, org.Slug, boolToInt(org.Active), modified, org.ID.String())
	if err != nil {
		return fmt.Errorf("update organisation: %w", err)
	}
	return requireRow(res)
}

func (s *SQL) CreateMembership(ctx context.Context, m *tenancy.Membership) error {
	query := s.handle.Rebind(`
		INSERT INTO memberships (id, org_id, user_id, org_role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.q(ctx).ExecContext(ctx, query,
		m.ID.String(), m.OrgID.String(), m.UserID.String(), string(m.Role),
		boolToInt(m.Active), fmtTime(m.CreatedAt))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

const membershipColumns = `id, org_id, user_id, org_role, is_active, created_at`

func (s *SQL) FindByOrgUser(ctx context.Context, orgID domain.OrgID, userID domain.UserID) (*tenancy.Membership, error) {
	query := s.handle.Rebind(`
		SELECT ` + membershipColumns + ` FROM memberships WHERE org_id = ? AND user_id = ?`)
	return scanMembership(s.q(ctx).QueryRowContext(ctx, query, orgID.String(), userID.String()))
}

func (s *SQL) ListMembers(ctx context.Context, orgID domain.OrgID) ([]*tenancy.Membership, error) {
	query := s.handle.Rebind(`
		SELECT ` + membershipColumns + ` FROM memberships WHERE org_id = ? ORDER BY created_at`)
	rows, err := s.q(ctx).QueryContext(ctx, query, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*tenancy.Membership
	for rows.Next() {
		m, err := scanMembershipRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQL) UpdateMembership(ctx context.Context, m *tenancy.Membership) error {
	query := s.handle.Rebind(`
		UPDATE memberships SET org_role = ?, is_active = ? WHERE id = ?`)
	res, err := s.q(ctx).ExecContext(ctx, query,
		string(m.Role), boolToInt(m.Active), m.ID.String())
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	return requireRow(res)
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQL) scanOrg(row *sql.Row) (*tenancy.Organisation, error) {
	org, err := scanOrgRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return org, err
}

func scanOrgRow(row rowScanner) (*tenancy.Organisation, error) {
	var (
		rawID, name, slug, created string
		active                     int
		modified                   sql.NullString
	)
	if err := row.Scan(&rawID, &name, &slug, &active, &created, &modified); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored organisation id %q: %w", rawID, err)
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	org := &tenancy.Organisation{
		ID:        domain.OrgID(id),
		Name:      name,
		Slug:      slug,
		Active:    active != 0,
		CreatedAt: createdAt,
	}
	if modified.Valid {
		t, err := parseTime(modified.String)
		if err != nil {
			return nil, err
		}
		org.ModifiedAt = &t
	}
	return org, nil
}

func scanMembership(row *sql.Row) (*tenancy.Membership, error) {
	m, err := scanMembershipRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return m, err
}

func scanMembershipRow(row rowScanner) (*tenancy.Membership, error) {
	var (
		rawID, rawOrg, rawUser, role, created string
		active                                int
	)
	if err := row.Scan(&rawID, &rawOrg, &rawUser, &role, &active, &created); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored membership id %q: %w", rawID, err)
	}
	orgID, err := uuid.Parse(rawOrg)
	if err != nil {
		return nil, fmt.Errorf("stored membership org id %q: %w", rawOrg, err)
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return nil, fmt.Errorf("stored membership user id %q: %w", rawUser, err)
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	return &tenancy.Membership{
		ID:        domain.MembershipID(id),
		OrgID:     domain.OrgID(orgID),
		UserID:    domain.UserID(userID),
		Role:      tenancy.OrgRole(role),
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

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
