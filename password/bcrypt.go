package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor used when Config.Cost is zero.
	DefaultCost = 12

	minPassBytes = 8
)

// Config holds bcrypt tuning parameters.
type Config struct {
	Cost int
}

// Hasher hashes and verifies passwords using bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a [Hasher] with the given config. A zero cost selects
// [DefaultCost].
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}

	return &Hasher{cost: cost}, nil
}

// Hash derives a bcrypt hash of the password.
//
// Password processing uses raw string bytes exactly as provided (no Unicode
// normalization). bcrypt only consumes the first 72 bytes of input.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", errors.New("password must be at least 8 bytes")
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Verify reports whether password matches the stored bcrypt hash. A malformed
// hash verifies as false rather than returning an error, so callers treat
// corrupt credential rows the same as a wrong password.
func (h *Hasher) Verify(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// NeedsRehash reports whether the stored hash was produced with a lower cost
// than currently configured. Callers can re-hash on the next successful login.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return true
	}
	return cost < h.cost
}
