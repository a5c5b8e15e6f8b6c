package tenancy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
	"vettinghub/pkg/platform/sentinel"
)

// memStore is a minimal ServiceStore for service tests. The real in-memory
// store lives in the store package; duplicating a slim one here avoids an
// import cycle with the guard interfaces.
type memStore struct {
	orgs        map[domain.OrgID]*Organisation
	memberships map[domain.MembershipID]*Membership
}

func newMemStore() *memStore {
	return &memStore{
		orgs:        make(map[domain.OrgID]*Organisation),
		memberships: make(map[domain.MembershipID]*Membership),
	}
}

func (m *memStore) CreateOrganisation(_ context.Context, org *Organisation) error {
	for _, existing := range m.orgs {
		if existing.Slug == org.Slug {
			return sentinel.ErrAlreadyUsed
		}
	}
	m.orgs[org.ID] = org
	return nil
}

func (m *memStore) FindByID(_ context.Context, id domain.OrgID) (*Organisation, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return org, nil
}

func (m *memStore) FindBySlug(_ context.Context, slug string) (*Organisation, error) {
	for _, org := range m.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *memStore) ListOrganisations(_ context.Context) ([]*Organisation, error) {
	out := make([]*Organisation, 0, len(m.orgs))
	for _, org := range m.orgs {
		out = append(out, org)
	}
	return out, nil
}

func (m *memStore) UpdateOrganisation(_ context.Context, org *Organisation) error {
	if _, ok := m.orgs[org.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.orgs[org.ID] = org
	return nil
}

func (m *memStore) CreateMembership(_ context.Context, mem *Membership) error {
	for _, existing := range m.memberships {
		if existing.OrgID == mem.OrgID && existing.UserID == mem.UserID {
			return sentinel.ErrAlreadyUsed
		}
	}
	m.memberships[mem.ID] = mem
	return nil
}

func (m *memStore) FindByOrgUser(_ context.Context, orgID domain.OrgID, userID domain.UserID) (*Membership, error) {
	for _, mem := range m.memberships {
		if mem.OrgID == orgID && mem.UserID == userID {
			return mem, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *memStore) ListMembers(_ context.Context, orgID domain.OrgID) ([]*Membership, error) {
	var out []*Membership
	for _, mem := range m.memberships {
		if mem.OrgID == orgID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *memStore) UpdateMembership(_ context.Context, mem *Membership) error {
	if _, ok := m.memberships[mem.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.memberships[mem.ID] = mem
	return nil
}

func adminScope(orgID domain.OrgID) Scope {
	return Scope{orgID: &orgID, role: RoleOrgAdmin, actor: domain.UserID(uuid.New())}
}

func TestCreateOrganisation(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	operator := Principal{UserID: domain.UserID(uuid.New()), Superuser: true}

	t.Run("superuser creates organisation", func(t *testing.T) {
		org, err := svc.CreateOrganisation(ctx, operator, "City Hospital", "City-Hospital")
		require.NoError(t, err)
		assert.Equal(t, "city-hospital", org.Slug)
		assert.True(t, org.Active)
	})

	t.Run("slug collision is a conflict", func(t *testing.T) {
		_, err := svc.CreateOrganisation(ctx, operator, "Other", "city-hospital")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("regular user is denied", func(t *testing.T) {
		_, err := svc.CreateOrganisation(ctx, Principal{UserID: domain.UserID(uuid.New())}, "Nope", "nope")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("empty name fails validation", func(t *testing.T) {
		_, err := svc.CreateOrganisation(ctx, operator, "  ", "blank")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestDisableOrganisation(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	operator := Principal{UserID: domain.UserID(uuid.New()), Superuser: true}

	org, err := svc.CreateOrganisation(ctx, operator, "Shut Down Soon", "shut-down-soon")
	require.NoError(t, err)

	t.Run("disables once", func(t *testing.T) {
		disabled, err := svc.DisableOrganisation(ctx, operator, org.ID)
		require.NoError(t, err)
		assert.False(t, disabled.Active)
		assert.NotNil(t, disabled.ModifiedAt)
	})

	t.Run("second disable is a conflict", func(t *testing.T) {
		_, err := svc.DisableOrganisation(ctx, operator, org.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown organisation", func(t *testing.T) {
		_, err := svc.DisableOrganisation(ctx, operator, domain.OrgID(uuid.New()))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("regular user is denied", func(t *testing.T) {
		_, err := svc.DisableOrganisation(ctx, Principal{UserID: domain.UserID(uuid.New())}, org.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}

func TestMembershipManagement(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()
	orgID := domain.OrgID(uuid.New())
	store.orgs[orgID] = &Organisation{ID: orgID, Name: "Org", Slug: "org", Active: true}

	userID := domain.UserID(uuid.New())

	t.Run("admin adds a member", func(t *testing.T) {
		m, err := svc.AddMember(ctx, adminScope(orgID), orgID, userID, OrgRoleRadiologist)
		require.NoError(t, err)
		assert.Equal(t, OrgRoleRadiologist, m.Role)
		assert.True(t, m.Active)
	})

	t.Run("duplicate membership is a conflict", func(t *testing.T) {
		_, err := svc.AddMember(ctx, adminScope(orgID), orgID, userID, OrgRoleUser)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("non-admin role is denied", func(t *testing.T) {
		scope := Scope{orgID: &orgID, role: RoleOrgUser, actor: domain.UserID(uuid.New())}
		_, err := svc.AddMember(ctx, scope, orgID, domain.UserID(uuid.New()), OrgRoleUser)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("scope for another organisation is denied", func(t *testing.T) {
		_, err := svc.AddMember(ctx, adminScope(domain.OrgID(uuid.New())), orgID, domain.UserID(uuid.New()), OrgRoleUser)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("invalid role fails validation", func(t *testing.T) {
		_, err := svc.AddMember(ctx, adminScope(orgID), orgID, domain.UserID(uuid.New()), OrgRole("owner"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("remove deactivates the membership", func(t *testing.T) {
		require.NoError(t, svc.RemoveMember(ctx, adminScope(orgID), orgID, userID))

		m, err := store.FindByOrgUser(ctx, orgID, userID)
		require.NoError(t, err)
		assert.False(t, m.Active)

		err = svc.RemoveMember(ctx, adminScope(orgID), orgID, userID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
