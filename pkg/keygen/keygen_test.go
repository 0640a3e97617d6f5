package keygen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^([A-Z0-9]+-)?[A-HJ-NP-Z2-9]{4}(-[A-HJ-NP-Z2-9]{4}){3}$`)

func TestKeyFormat(t *testing.T) {
	k, err := Key("")
	require.NoError(t, err)
	require.Len(t, k, 19)
	require.Regexp(t, keyPattern, k)
	require.NotContains(t, k, "O")
	require.NotContains(t, k, "0")
}

func TestKeyPrefix(t *testing.T) {
	k, err := Key(" pro- ")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(k, "PRO-"), k)
	require.Regexp(t, keyPattern, k)

	_, err = Key(strings.Repeat("A", 17))
	require.Error(t, err)
}

func TestBatch(t *testing.T) {
	keys, err := Batch(50, "")
	require.NoError(t, err)
	require.Len(t, keys, 50)

	seen := map[string]bool{}
	for _, k := range keys {
		require.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}

	_, err = Batch(0, "")
	require.Error(t, err)
	_, err = Batch(MaxBatchSize+1, "")
	require.Error(t, err)
}
