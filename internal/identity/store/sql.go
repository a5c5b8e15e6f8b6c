package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/identity"
	"vettinghub/internal/platform/db"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	txcontext "vettinghub/pkg/platform/tx"
)

// SQL persists users on either relational backend.
type SQL struct {
	handle *db.Handle
}

// NewSQL constructs the SQL store over an open handle.
func NewSQL(handle *db.Handle) *SQL {
	return &SQL{handle: handle}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.handle.DB
}

const userColumns = `id, username, email, password_hash, salt_hex, is_superuser, is_active, created_at`

func (s *SQL) Create(ctx context.Context, u *identity.User) error {
	query := s.handle.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.q(ctx).ExecContext(ctx, query,
		u.ID.String(), u.Username, u.Email, u.PasswordHash, u.SaltHex,
		boolToInt(u.Superuser), boolToInt(u.Active),
		u.CreatedAt.UTC().Format(db.TimeFormat))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQL) FindByID(ctx context.Context, id domain.UserID) (*identity.User, error) {
	query := s.handle.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return scanUser(s.q(ctx).QueryRowContext(ctx, query, id.String()))
}

func (s *SQL) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	query := s.handle.Rebind(`SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER(?)`)
	return scanUser(s.q(ctx).QueryRowContext(ctx, query, username))
}

func (s *SQL) Update(ctx context.Context, u *identity.User) error {
	query := s.handle.Rebind(`
		UPDATE users SET email = ?, password_hash = ?, salt_hex = ?,
			is_superuser = ?, is_active = ?
		WHERE id = ?`)
	res, err := s.q(ctx).ExecContext(ctx, query,
		u.Email, u.PasswordHash, u.SaltHex,
		boolToInt(u.Superuser), boolToInt(u.Active), u.ID.String())
	if err != nil {
		return fmt.Errorf("update user: %w", err)
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

func scanUser(row *sql.Row) (*identity.User, error) {
	var (
		rawID, username, email, hash, salt, created string
		superuser, active                           int
	)
	err := row.Scan(&rawID, &username, &email, &hash, &salt, &superuser, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored user id %q: %w", rawID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp %q: %w", created, err)
	}
	return &identity.User{
		ID:           domain.UserID(id),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		SaltHex:      salt,
		Superuser:    superuser != 0,
		Active:       active != 0,
		CreatedAt:    createdAt,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
