// Package cryptox hashes device secrets with argon2id.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/agencysync/internal/shared"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of a generated salt in bytes.
const SaltSize = 16

// HashSecret derives a 32-byte argon2id hash of secret.
func HashSecret(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, 32)
}

func NewSalt() ([]byte, error) {
	return shared.RandomBytes(SaltSize)
}

// VerifySecret reports whether secret hashes to hash under salt. The
// comparison runs in constant time.
func VerifySecret(secret, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(HashSecret(secret, salt), hash) == 1
}
