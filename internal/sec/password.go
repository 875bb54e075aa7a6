package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names how passwords are stored in the Users table.
type Scheme string

// Supported schemes.
const (
	SchemePlaintext Scheme = "plaintext"
	SchemeBcrypt    Scheme = "bcrypt"
)

// Prepare returns the value to store in the password column for password.
func (s Scheme) Prepare(password string) (string, error) {
	switch s {
	case SchemePlaintext:
		return password, nil
	case SchemeBcrypt:
		hash, err := HashPassword(password)
		return string(hash), err
	default:
		return "", fmt.Errorf("unknown password scheme %q", string(s))
	}
}

// ComparePassword returns an error if the provided password does not resolve to
// the given hash.
func ComparePassword[T ~string | ~[]byte](password T, hash []byte) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

// HashPassword generates the hash for a given password. It errors if the
// password is longer than 72 bytes.
func HashPassword[T ~string | ~[]byte](password T) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// MatchesStored reports whether password resolves to the bcrypt hash held in
// a password column value. Values that are not text or not bcrypt hashes never
// match.
func MatchesStored(password string, stored any) bool {
	var hash []byte
	switch val := stored.(type) {
	case string:
		hash = []byte(val)
	case []byte:
		hash = val
	default:
		return false
	}
	return ComparePassword(password, hash) == nil
}
