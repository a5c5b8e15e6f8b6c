package institution_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vettinghub/internal/institution"
	"vettinghub/internal/institution/store"
	"vettinghub/internal/sla"
	"vettinghub/internal/tenancy"
	"vettinghub/internal/tenancy/tenancytest"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

func TestCreateInstitution(t *testing.T) {
	svc := institution.NewService(store.NewInMemory())
	ctx := context.Background()
	orgID := domain.OrgID(uuid.New())
	admin := tenancytest.MemberScope(t, orgID, domain.UserID(uuid.New()), tenancy.OrgRoleAdmin)

	t.Run("admin creates with explicit window", func(t *testing.T) {
		inst, err := svc.Create(ctx, admin, orgID, "Nuffield Hospital", 24)
		require.NoError(t, err)
		assert.Equal(t, 24, inst.SLAHours)
	})

	t.Run("zero window takes the default", func(t *testing.T) {
		inst, err := svc.Create(ctx, admin, orgID, "UHCL", 0)
		require.NoError(t, err)
		assert.Equal(t, sla.DefaultHours, inst.SLAHours)
	})

	t.Run("window outside range fails validation", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, orgID, "Too Slow", 1000)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = svc.Create(ctx, admin, orgID, "Negative", -1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("duplicate name in the same organisation is a conflict", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, orgID, "UHCL", 48)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("same name in another organisation is fine", func(t *testing.T) {
		otherOrg := domain.OrgID(uuid.New())
		otherAdmin := tenancytest.MemberScope(t, otherOrg, domain.UserID(uuid.New()), tenancy.OrgRoleAdmin)
		_, err := svc.Create(ctx, otherAdmin, otherOrg, "UHCL", 48)
		require.NoError(t, err)
	})

	t.Run("non-admin member is denied", func(t *testing.T) {
		user := tenancytest.MemberScope(t, orgID, domain.UserID(uuid.New()), tenancy.OrgRoleUser)
		_, err := svc.Create(ctx, user, orgID, "Denied", 48)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("scope for another organisation is denied", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, domain.OrgID(uuid.New()), "Elsewhere", 48)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}

func TestUpdateSLA(t *testing.T) {
	svc := institution.NewService(store.NewInMemory())
	ctx := context.Background()
	orgID := domain.OrgID(uuid.New())
	admin := tenancytest.MemberScope(t, orgID, domain.UserID(uuid.New()), tenancy.OrgRoleAdmin)

	inst, err := svc.Create(ctx, admin, orgID, "Local Medical Centre", 72)
	require.NoError(t, err)

	t.Run("updates the window", func(t *testing.T) {
		updated, err := svc.UpdateSLA(ctx, admin, orgID, inst.ID, 36)
		require.NoError(t, err)
		assert.Equal(t, 36, updated.SLAHours)

		got, err := svc.Get(ctx, admin, orgID, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, 36, got.SLAHours)
	})

	t.Run("rejects out-of-range window", func(t *testing.T) {
		_, err := svc.UpdateSLA(ctx, admin, orgID, inst.ID, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown institution", func(t *testing.T) {
		_, err := svc.UpdateSLA(ctx, admin, orgID, domain.InstitutionID(uuid.New()), 24)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("radiologist cannot change windows", func(t *testing.T) {
		rad := tenancytest.MemberScope(t, orgID, domain.UserID(uuid.New()), tenancy.OrgRoleRadiologist)
		_, err := svc.UpdateSLA(ctx, rad, orgID, inst.ID, 24)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}

func TestListInstitutions(t *testing.T) {
	svc := institution.NewService(store.NewInMemory())
	ctx := context.Background()
	orgID := domain.OrgID(uuid.New())
	admin := tenancytest.MemberScope(t, orgID, domain.UserID(uuid.New()), tenancy.OrgRoleAdmin)

	for _, name := range []string{"Zeta Imaging", "Alpha Clinic"} {
		_, err := svc.Create(ctx, admin, orgID, name, 48)
		require.NoError(t, err)
	}

	t.Run("sorted by name, own org only", func(t *testing.T) {
		insts, err := svc.List(ctx, admin, orgID)
		require.NoError(t, err)
		require.Len(t, insts, 2)
		assert.Equal(t, "Alpha Clinic", insts[0].Name)
	})

	t.Run("superuser sees any organisation", func(t *testing.T) {
		super := tenancytest.SuperuserScope(t, domain.UserID(uuid.New()))
		insts, err := svc.List(ctx, super, orgID)
		require.NoError(t, err)
		assert.Len(t, insts, 2)
	})

	t.Run("foreign scope is denied", func(t *testing.T) {
		foreign := tenancytest.MemberScope(t, domain.OrgID(uuid.New()), domain.UserID(uuid.New()), tenancy.OrgRoleAdmin)
		_, err := svc.List(ctx, foreign, orgID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}
