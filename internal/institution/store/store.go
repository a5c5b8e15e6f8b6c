// Package store persists institutions. InMemory for unit tests, SQL for the
// real backends; both return sentinel errors.
package store

import (
	"context"

	"vettinghub/internal/institution"
	"vettinghub/pkg/domain"
)

// Store is the persistence surface for institutions. Reads are always keyed by
// organisation; there is no cross-tenant institution query.
type Store interface {
	Create(ctx context.Context, inst *institution.Institution) error
	FindByID(ctx context.Context, orgID domain.OrgID, id domain.InstitutionID) (*institution.Institution, error)
	ListByOrg(ctx context.Context, orgID domain.OrgID) ([]*institution.Institution, error)
	Update(ctx context.Context, inst *institution.Institution) error
}
