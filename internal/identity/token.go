package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vettinghub/pkg/domain"
	dErrors "vettinghub/pkg/domainerrors"
)

// tokenTTL bounds how long a bearer token stays valid.
const tokenTTL = 12 * time.Hour

type claims struct {
	Superuser bool `json:"su"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the HS256 bearer tokens the HTTP layer
// carries. The signing key is shared process config, not per-user.
type TokenIssuer struct {
	key []byte
}

// NewTokenIssuer constructs an issuer over the signing key.
func NewTokenIssuer(key []byte) *TokenIssuer {
	return &TokenIssuer{key: key}
}

// Mint issues a token for the user, valid from now for the standard TTL.
func (i *TokenIssuer) Mint(u *User, now time.Time) (string, error) {
	c := claims{
		Superuser: u.Superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user id and superuser
// flag it carries. Any failure is AccessDenied; the caller never learns why.
func (i *TokenIssuer) Verify(raw string) (domain.UserID, bool, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return domain.UserID{}, false, dErrors.New(dErrors.CodeAccessDenied, "invalid token")
	}
	userID, err := domain.ParseUserID(c.Subject)
	if err != nil {
		return domain.UserID{}, false, dErrors.New(dErrors.CodeAccessDenied, "invalid token")
	}
	return userID, c.Superuser, nil
}
