package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

func TestCourseLock_Exclusive(t *testing.T) {
	_, cache := newTestCache(t)
	lock := NewCourseLock(cache.Client(), CourseLockConfig{TTL: time.Minute, PollInterval: 5 * time.Millisecond})
	ctx := context.Background()

	unlock, err := lock.Lock(ctx, "c1")
	require.NoError(t, err)

	_, err = lock.Lock(ctx, "c1")
	assert.ErrorIs(t, err, shared.ErrCourseBusy)

	other, err := lock.Lock(ctx, "c2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := lock.Lock(ctx, "c1")
	require.NoError(t, err)
	again()
}

func TestCourseLock_RenewsWhileHeld(t *testing.T) {
	mr, cache := newTestCache(t)
	lock := NewCourseLock(cache.Client(), CourseLockConfig{TTL: 3 * time.Second, RenewInterval: 20 * time.Millisecond})
	key := CourseLockKey("c1")

	unlock, err := lock.Lock(context.Background(), "c1")
	require.NoError(t, err)

	// Past the original TTL the lock must still be there.
	mr.FastForward(2 * time.Second)
	require.Eventually(t, func() bool { return mr.TTL(key) > 2*time.Second }, time.Second, 10*time.Millisecond)
	mr.FastForward(2 * time.Second)
	require.Eventually(t, func() bool { return mr.TTL(key) > 2*time.Second }, time.Second, 10*time.Millisecond)
	assert.True(t, mr.Exists(key))

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestCourseLock_KeepsForeignToken(t *testing.T) {
	mr, cache := newTestCache(t)
	lock := NewCourseLock(cache.Client(), CourseLockConfig{TTL: 3 * time.Second, RenewInterval: 20 * time.Millisecond})
	key := CourseLockKey("c1")

	unlock, err := lock.Lock(context.Background(), "c1")
	require.NoError(t, err)

	// The lock expired and another worker took it.
	require.NoError(t, mr.Set(key, "other"))
	mr.SetTTL(key, time.Minute)
	time.Sleep(60 * time.Millisecond)

	unlock()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other", got)
	assert.Equal(t, time.Minute, mr.TTL(key))
}
