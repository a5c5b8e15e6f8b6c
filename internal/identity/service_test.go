package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vettinghub/internal/identity"
	"vettinghub/internal/identity/store"
	"vettinghub/internal/tenancy"
	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

func newService() *identity.Service {
	return identity.NewService(store.NewInMemory(), identity.NewTokenIssuer([]byte("test-signing-key")))
}

func operator() tenancy.Principal {
	return tenancy.Principal{UserID: domain.UserID(uuid.New()), Superuser: true}
}

func TestRegister(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	t.Run("operator registers a user", func(t *testing.T) {
		u, err := svc.Register(ctx, operator(), "AOkafor", "ada@example.org", "correct horse battery", false)
		require.NoError(t, err)
		assert.Equal(t, "aokafor", u.Username, "usernames are lowercased")
		assert.True(t, u.Active)
		assert.NotEmpty(t, u.PasswordHash)
		assert.NotEqual(t, "correct horse battery", u.PasswordHash)
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		_, err := svc.Register(ctx, operator(), "aokafor", "", "another password", false)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("short password fails validation", func(t *testing.T) {
		_, err := svc.Register(ctx, operator(), "brief", "", "short", false)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("non-operator is denied", func(t *testing.T) {
		_, err := svc.Register(ctx, tenancy.Principal{UserID: domain.UserID(uuid.New())}, "nope", "", "long enough pw", false)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}

func TestLoginAndToken(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, operator(), "radiologist1", "", "a sound passphrase", false)
	require.NoError(t, err)

	t.Run("valid credentials mint a verifiable token", func(t *testing.T) {
		loggedIn, token, err := svc.Login(ctx, "radiologist1", "a sound passphrase")
		require.NoError(t, err)
		assert.Equal(t, u.ID, loggedIn.ID)

		principal, err := svc.PrincipalFromToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, principal.UserID)
		assert.False(t, principal.Superuser)
	})

	t.Run("wrong password and unknown user look identical", func(t *testing.T) {
		_, _, errWrong := svc.Login(ctx, "radiologist1", "not the passphrase")
		_, _, errUnknown := svc.Login(ctx, "ghost", "a sound passphrase")
		require.Error(t, errWrong)
		require.Error(t, errUnknown)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
		assert.True(t, dErrors.HasCode(errWrong, dErrors.CodeAccessDenied))
	})

	t.Run("garbage token is denied", func(t *testing.T) {
		_, err := svc.PrincipalFromToken(ctx, "not.a.token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("token signed with another key is denied", func(t *testing.T) {
		foreign := identity.NewTokenIssuer([]byte("other-key"))
		token, err := foreign.Mint(u, time.Now().UTC())
		require.NoError(t, err)
		_, err = svc.PrincipalFromToken(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	t.Run("deactivated user cannot log in or use an old token", func(t *testing.T) {
		_, token, err := svc.Login(ctx, "radiologist1", "a sound passphrase")
		require.NoError(t, err)

		require.NoError(t, svc.Deactivate(ctx, operator(), u.ID))

		_, _, err = svc.Login(ctx, "radiologist1", "a sound passphrase")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))

		_, err = svc.PrincipalFromToken(ctx, token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})
}

func TestSuperuserClaimComesFromStore(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, operator(), "op2", "", "operator passphrase", true)
	require.NoError(t, err)

	_, token, err := svc.Login(ctx, "op2", "operator passphrase")
	require.NoError(t, err)

	principal, err := svc.PrincipalFromToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, principal.Superuser)
	assert.Equal(t, u.ID, principal.UserID)
}

func TestPasswordHashing(t *testing.T) {
	hash1, salt1, err := identity.HashPassword("shared password")
	require.NoError(t, err)
	hash2, salt2, err := identity.HashPassword("shared password")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2, "salts are random")
	assert.NotEqual(t, hash1, hash2, "same password, different salt, different hash")

	assert.True(t, identity.VerifyPassword("shared password", salt1, hash1))
	assert.False(t, identity.VerifyPassword("other password", salt1, hash1))
	assert.False(t, identity.VerifyPassword("shared password", "zz-not-hex", hash1))
}
