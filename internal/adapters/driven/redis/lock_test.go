package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	assert.NotEmpty(t, lock1.OwnerID())
	assert.NotEqual(t, lock1.OwnerID(), lock2.OwnerID())
}

func TestLock_Acquire(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	token, acquired, err := lock.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, strings.HasPrefix(token, lock.OwnerID()+":"))

	value, err := mr.Get(lockPrefix + "ingest:vid1")
	require.NoError(t, err)
	assert.Equal(t, token, value)
	assert.Equal(t, 10*time.Second, mr.TTL(lockPrefix+"ingest:vid1"))
}

func TestLock_Acquire_HeldByOtherInstance(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	_, acquired, err := lock1.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	token, acquired, err := lock2.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "second instance must not take a held lock")
	assert.Empty(t, token)
}

func TestLock_Acquire_NotReentrant(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	_, acquired, err := lock.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	_, acquired, err = lock.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestLock_Acquire_AfterExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	_, acquired, err := lock1.Acquire(ctx, "ingest:vid1", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	_, acquired, err = lock2.Acquire(ctx, "ingest:vid1", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "expired lock should be free")
}

func TestLock_Release(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	token, _, err := lock.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx, "ingest:vid1", token))

	_, acquired, err := lock.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLock_Release_NotHeld(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewLock(client)

	assert.NoError(t, lock.Release(context.Background(), "ingest:vid1", "nobody"))
}

func TestLock_Release_ByDifferentOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	token, _, err := lock1.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)

	require.NoError(t, lock2.Release(ctx, "ingest:vid1", lock2.OwnerID()))

	_, acquired, err := lock2.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "foreign release must not free the lock")

	require.NoError(t, lock1.Release(ctx, "ingest:vid1", token))
}

func TestLock_Release_AfterTakeoverKeepsSuccessor(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	stale, _, err := lock.Acquire(ctx, "ingest:vid1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	successor, acquired, err := lock.Acquire(ctx, "ingest:vid1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, lock.Release(ctx, "ingest:vid1", stale))

	value, err := mr.Get(lockPrefix + "ingest:vid1")
	require.NoError(t, err)
	assert.Equal(t, successor, value, "an expired holder must not free its successor")
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	token, _, err := lock.Acquire(ctx, "ingest:vid1", time.Second)
	require.NoError(t, err)

	require.NoError(t, lock.Extend(ctx, "ingest:vid1", token, 10*time.Second))
	assert.Equal(t, 10*time.Second, mr.TTL(lockPrefix+"ingest:vid1"))

	assert.Error(t, lock.Extend(ctx, "ingest:vid1", "other-token", 20*time.Second))
	assert.Error(t, lock.Extend(ctx, "ingest:vid2", token, 20*time.Second))
}

func TestLock_NamespacesAreIndependent(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	for _, name := range []string{"ingest:vid1", "ingest:vid2"} {
		_, acquired, err := lock.Acquire(ctx, name, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, acquired, name)
	}
}

func TestLock_Ping(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.NoError(t, NewLock(client).Ping(context.Background()))
}
