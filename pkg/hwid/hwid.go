// Package hwid hashes client hardware fingerprints so that only a verifiable
// bcrypt credential is ever persisted.
package hwid

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past 72 bytes.
const maxInput = 72

type Hasher struct {
	cost int
}

// New returns a Hasher using cost, falling back to bcrypt.DefaultCost when
// cost is not positive and clamping to bcrypt's accepted range.
func New(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int {
	return h.cost
}

// Hash salts and hashes raw. Two calls with the same input return different
// values that both match raw.
func (h *Hasher) Hash(raw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(normalize(raw), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches reports whether raw hashes to stored. A malformed or empty stored
// value never matches.
func (h *Hasher) Matches(raw, stored string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), normalize(raw)) == nil
}

func normalize(raw string) []byte {
	if len(raw) <= maxInput {
		return []byte(raw)
	}
	sum := sha256.Sum256([]byte(raw))
	return []byte(hex.EncodeToString(sum[:]))
}
