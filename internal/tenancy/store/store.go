// Package store persists organisations and memberships.
//
// Two implementations: InMemory for unit tests and single-process trials, SQL
// for the real backends. Both return sentinel errors; services translate.
package store

import (
	"context"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
)

// Store is the full persistence surface for tenancy records. It satisfies
// tenancy.OrganisationStore and tenancy.MembershipStore so the Guard can be
// built straight on top of it.
type Store interface {
	CreateOrganisation(ctx context.Context, org *tenancy.Organisation) error
	FindByID(ctx context.Context, id domain.OrgID) (*tenancy.Organisation, error)
	FindBySlug(ctx context.Context, slug string) (*tenancy.Organisation, error)
	ListOrganisations(ctx context.Context) ([]*tenancy.Organisation, error)
	UpdateOrganisation(ctx context.Context, org *tenancy.Organisation) error

	CreateMembership(ctx context.Context, m *tenancy.Membership) error
	FindByOrgUser(ctx context.Context, orgID domain.OrgID, userID domain.UserID) (*tenancy.Membership, error)
	ListMembers(ctx context.Context, orgID domain.OrgID) ([]*tenancy.Membership, error)
	UpdateMembership(ctx context.Context, m *tenancy.Membership) error
}
