// Package identity owns users, password verification and the bearer tokens
// the transport layer exchanges them for. Authorisation is not decided here:
// a verified token yields a tenancy.Principal and the guard takes over.
package identity

import (
	"strings"
	"time"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// User is a platform account. Superuser is the operator escape hatch,
// orthogonal to any organisation membership.
type User struct {
	ID           domain.UserID
	Username     string
	Email        string
	PasswordHash string
	SaltHex      string
	Superuser    bool
	Active       bool
	CreatedAt    time.Time
}

// NewUser validates and constructs an active user with the given credential.
func NewUser(id domain.UserID, username, email, password string, superuser bool, now time.Time) (*User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(username) > 64 {
		return nil, dErrors.New(dErrors.CodeValidation, "username is too long")
	}
	if len(password) < 8 {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, salt, err := HashPassword(password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		SaltHex:      salt,
		Superuser:    superuser,
		Active:       true,
		CreatedAt:    now,
	}, nil
}

// CheckPassword verifies a login attempt in constant time.
func (u *User) CheckPassword(password string) bool {
	return VerifyPassword(password, u.SaltHex, u.PasswordHash)
}
