// Package tenancytest mints scopes for tests in other packages. Scope fields
// are unexported, so the only way to one is through Guard.Resolve; these
// helpers stand up a single-org guard and resolve against it.
package tenancytest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
)

type singleOrg struct {
	org *tenancy.Organisation
}

func (s singleOrg) FindByID(_ context.Context, id domain.OrgID) (*tenancy.Organisation, error) {
	if s.org.ID != id {
		return nil, sentinel.ErrNotFound
	}
	return s.org, nil
}

type singleMembership struct {
	m *tenancy.Membership
}

func (s singleMembership) FindByOrgUser(_ context.Context, orgID domain.OrgID, userID domain.UserID) (*tenancy.Membership, error) {
	if s.m == nil || s.m.OrgID != orgID || s.m.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	return s.m, nil
}

// MemberScope resolves a scope for userID holding role in orgID.
func MemberScope(t *testing.T, orgID domain.OrgID, userID domain.UserID, role tenancy.OrgRole) tenancy.Scope {
	t.Helper()
	org := &tenancy.Organisation{ID: orgID, Name: "Test Org", Slug: "test-org", Active: true, CreatedAt: time.Now()}
	membership := &tenancy.Membership{
		ID:        domain.MembershipID(uuid.New()),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now(),
	}
	guard := tenancy.NewGuard(singleOrg{org: org}, singleMembership{m: membership})
	scope, err := guard.Resolve(context.Background(), tenancy.Principal{UserID: userID}, orgID)
	if err != nil {
		t.Fatalf("resolve member scope: %v", err)
	}
	return scope
}

// SuperuserScope resolves an unscoped platform-operator scope for userID.
func SuperuserScope(t *testing.T, userID domain.UserID) tenancy.Scope {
	t.Helper()
	guard := tenancy.NewGuard(singleOrg{org: &tenancy.Organisation{}}, singleMembership{})
	scope, err := guard.Resolve(context.Background(), tenancy.Principal{UserID: userID, Superuser: true}, domain.OrgID{})
	if err != nil {
		t.Fatalf("resolve superuser scope: %v", err)
	}
	return scope
}
