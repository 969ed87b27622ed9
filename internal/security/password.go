package security

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Minimum lengths enforced at the two call sites: sign-in is lenient (the
// store is the real judge), provisioning is stricter.
const (
	MinSignInPasswordLen    = 3
	MinProvisionPasswordLen = 6
)

// HashPassword hashes a plain text password with bcrypt. Used for the
// fallback credential record; never for anything sent to the store.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// ConstantTimeEquals compares two strings without leaking length-prefix
// timing. Used for the development escape-hatch credential.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
