package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is the generic credential failure. It never
// distinguishes "user not found" from "wrong password", preventing
// account enumeration.
var ErrInvalidCredentials = errors.New("security: invalid credentials")

// dummyHash is a pre-computed bcrypt hash (of "test") compared when no
// real hash exists. The timing-attack mitigation comes from always
// performing the bcrypt comparison, not from the hash value.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// VerifyPassword compares a password against a bcrypt hash in constant
// time with respect to account existence: when hash is empty (unknown
// user, or an OAuth account without a password), the comparison still
// runs against a dummy hash before failing.
func VerifyPassword(hash, password string) error {
	compareTo := dummyHash
	known := hash != ""
	if known {
		compareTo = hash
	}

	err := bcrypt.CompareHashAndPassword([]byte(compareTo), []byte(password))

	if !known || err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
