package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisClient{Client: client}, mr
}

func TestAcquireLockMutualExclusion(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	ok, release, err := r.AcquireLock(ctx, "lock:a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = r.AcquireLock(ctx, "lock:a", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be acquirable")

	release()
	assert.False(t, mr.Exists("lock:a"))

	ok, release, err = r.AcquireLock(ctx, "lock:a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "released lock is acquirable again")
	release()
}

func TestAcquireLockStaleReleaseKeepsNewHolder(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	ok, staleRelease, err := r.AcquireLock(ctx, "lock:a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder outlives its lease; the key expires and a second
	// holder takes over.
	mr.FastForward(31 * time.Second)
	ok, release, err := r.AcquireLock(ctx, "lock:a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder's release must not free the second holder's lock.
	staleRelease()
	assert.True(t, mr.Exists("lock:a"), "stale release deleted the new holder's lock")

	ok, _, err = r.AcquireLock(ctx, "lock:a", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "lock must stay exclusive after a stale release")

	release()
	assert.False(t, mr.Exists("lock:a"))
}
