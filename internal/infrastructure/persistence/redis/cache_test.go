package redis

import (
	"context"
	"path"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationKey(t *testing.T) {
	assert.Equal(t, "records:classification:c1:v0:all", ClassificationKey("c1", 0, ""))
	assert.Equal(t, "records:classification:c1:v7:p1", ClassificationKey("c1", 7, "p1"))
	assert.Equal(t, "records:classification:c1:*", ClassificationPattern("c1"))
	assert.Equal(t, "records:classification-version:c1", ClassificationVersionKey("c1"))

	matched, err := path.Match(ClassificationPattern("c1"), ClassificationKey("c1", 3, "p1"))
	require.NoError(t, err)
	assert.True(t, matched)
	matched, err = path.Match(ClassificationPattern("c1"), ClassificationVersionKey("c1"))
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestQueueKeys(t *testing.T) {
	assert.Equal(t, "records:queue:classification", QueueKey("classification"))
	assert.Equal(t, "records:queue:classification:dead", DeadLetterKey("classification"))
	assert.Equal(t, "records:job:42", JobKey("42"))
	assert.Equal(t, "records:lock:classification:c1", CourseLockKey("c1"))
}

func TestNewCourseLock_Defaults(t *testing.T) {
	l := NewCourseLock(nil, CourseLockConfig{Wait: -time.Second})

	assert.Equal(t, TTLCourseLock, l.config.TTL)
	assert.Equal(t, time.Duration(0), l.config.Wait)
	assert.Equal(t, 100*time.Millisecond, l.config.PollInterval)
	assert.Equal(t, TTLCourseLock/3, l.config.RenewInterval)
}

func TestNewClassificationCache_DefaultTTL(t *testing.T) {
	c := NewClassificationCache(nil, 0)
	assert.Equal(t, TTLClassificationCache, c.ttl)
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "redis:6380", Config{Host: "redis", Port: 6380}.Addr())
	assert.Equal(t, "[::1]:6379", Config{Host: "::1", Port: 6379}.Addr())
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cache, err := NewCache(context.Background(), Config{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return mr, cache
}

func TestCache_DeleteMatching(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, cache.SetJSON(ctx, ClassificationKey("c1", int64(i), ""), i, time.Minute))
	}
	require.NoError(t, cache.SetJSON(ctx, ClassificationKey("c2", 0, ""), 1, time.Minute))

	require.NoError(t, cache.DeleteMatching(ctx, ClassificationPattern("c1")))

	assert.Len(t, mr.Keys(), 1)
	var v int
	assert.ErrorIs(t, cache.GetJSON(ctx, ClassificationKey("c1", 0, ""), &v), ErrCacheMiss)
	require.NoError(t, cache.GetJSON(ctx, ClassificationKey("c2", 0, ""), &v))
	assert.Equal(t, 1, v)
}
