// Package store persists the protocol catalogue. InMemory for unit tests, SQL
// for the real backends; both return sentinel errors.
package store

import (
	"context"

	"vettinghub/internal/protocol"
	"vettinghub/pkg/domain"
)

// Store is the persistence surface for catalogue entries. Reads are always
// keyed by organisation; name lookups match case-insensitively.
type Store interface {
	Create(ctx context.Context, p *protocol.Protocol) error
	FindByName(ctx context.Context, orgID domain.OrgID, name string) (*protocol.Protocol, error)
	ListByOrg(ctx context.Context, orgID domain.OrgID, activeOnly bool) ([]*protocol.Protocol, error)
	Update(ctx context.Context, p *protocol.Protocol) error
}
