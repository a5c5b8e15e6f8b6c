// Package store persists users. InMemory for unit tests, SQL for the real
// backends; both return sentinel errors.
package store

import (
	"context"

	"vettinghub/internal/identity"
	"vettinghub/pkg/domain"
)

// Store is the persistence surface for users.
type Store interface {
	Create(ctx context.Context, u *identity.User) error
	FindByID(ctx context.Context, id domain.UserID) (*identity.User, error)
	FindByUsername(ctx context.Context, username string) (*identity.User, error)
	Update(ctx context.Context, u *identity.User) error
}
