// Package keygen produces human-distributable license keys of the form
// XXXX-XXXX-XXXX-XXXX from an alphabet without look-alike characters.
package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	alphabet       = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	segments       = 4
	segmentLength  = 4
	MaxBatchSize   = 500
	maxPrefixBytes = 16
)

// Key returns a random license key, prepended with prefix when it is set.
func Key(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if len(prefix) > maxPrefixBytes {
		return "", fmt.Errorf("prefix %q longer than %d characters", prefix, maxPrefixBytes)
	}

	parts := make([]string, 0, segments+1)
	if prefix != "" {
		parts = append(parts, strings.Trim(prefix, "-"))
	}
	for i := 0; i < segments; i++ {
		s, err := randomAlphaNumeric(segmentLength)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "-"), nil
}

// Batch returns n distinct keys.
func Batch(n int, prefix string) ([]string, error) {
	if n < 1 || n > MaxBatchSize {
		return nil, fmt.Errorf("count must be between 1 and %d", MaxBatchSize)
	}

	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		k, err := Key(prefix)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

func randomAlphaNumeric(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[num.Int64()]
	}
	return string(b), nil
}
