package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Changing iterations invalidates stored hashes, so treat
// these as part of the credential format.
const (
	pbkdf2Iterations = 200_000
	saltBytes        = 16
	keyBytes         = 32
)

// HashPassword derives a hex-encoded PBKDF2-HMAC-SHA256 hash with a fresh
// random salt, returning (hash, salt).
func HashPassword(password string) (string, string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyBytes, sha256.New)
	return hex.EncodeToString(key), hex.EncodeToString(salt), nil
}

// VerifyPassword re-derives the key and compares in constant time. Malformed
// stored values verify as false rather than erroring.
func VerifyPassword(password, saltHex, hashHex string) bool {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
