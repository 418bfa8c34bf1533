package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt is a Hasher for deployments carrying bcrypt-hashed credentials.
// New deployments should prefer Argon2id.
type Bcrypt struct {
	cost   int
	policy Policy
}

// NewBcrypt builds a bcrypt hasher. A cost outside bcrypt's valid range falls
// back to bcrypt.DefaultCost.
func NewBcrypt(cost int, policy Policy) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost, policy: policy}
}

// Hash hashes a password with bcrypt.
func (b *Bcrypt) Hash(plain string) (string, error) {
	if err := (Config{Policy: b.policy}).Validate(plain); err != nil {
		return "", err
	}
	// bcrypt silently truncates beyond 72 bytes; reject instead.
	if len(plain) > 72 {
		return "", ErrPasswordTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify checks whether plain matches the given bcrypt hash.
func (b *Bcrypt) Verify(plain, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "$2") {
		return false, ErrInvalidHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}
