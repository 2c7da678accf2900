package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hash validates the password against policy and returns a bcrypt hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	return c.HashRaw(password)
}

// HashRaw returns a bcrypt hash at the configured cost without applying the
// policy. Use it for values that were never user-chosen or were already accepted.
func (c Config) HashRaw(password string) (string, error) {
	cost := c.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = MinCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches encodedHash.
// A mismatch is (false, nil); a malformed hash is ErrInvalidHash.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	if len(password) > MaxBytes {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encodedHash was produced with a cost below c.Cost.
// Stronger hashes are left alone.
func (c Config) NeedsRehash(encodedHash string) bool {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false
	}
	return cost < c.Cost
}
