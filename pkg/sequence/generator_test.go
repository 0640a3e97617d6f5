package sequence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T, now time.Time) (*RedisGenerator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(now)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &RedisGenerator{rdb: rdb, now: func() time.Time { return now }}, mr
}

func TestNextBatchCode(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	g, mr := newGenerator(t, now)

	first, err := g.NextBatchCode(ctx, "desktop-app")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^BATCH-250307-001[A-Z2-9]{2}$`), first)

	second, err := g.NextBatchCode(ctx, "desktop-app")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^BATCH-250307-002[A-Z2-9]{2}$`), second)

	other, err := g.NextBatchCode(ctx, "cli-tool")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^BATCH-250307-001`), other)

	require.True(t, mr.Exists("seq:batch:desktop-app:250307"))
	require.Greater(t, mr.TTL("seq:batch:desktop-app:250307"), time.Duration(0))
}
