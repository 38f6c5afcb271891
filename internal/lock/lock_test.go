package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestAcquireRelease(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "lock:order:7", 5*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, l.Release(ctx, "lock:order:7", token))

	// Released, so a second acquisition succeeds.
	_, err = l.Acquire(ctx, "lock:order:7", 5*time.Second)
	assert.NoError(t, err)
}

func TestAcquire_Busy(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "lock:order:7", 5*time.Second)
	require.NoError(t, err)

	// Single attempt, no internal retry: the second caller gets ErrBusy
	// immediately.
	_, err = l.Acquire(ctx, "lock:order:7", 5*time.Second)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestAcquire_DistinctKeysIndependent(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "lock:order:1", 5*time.Second)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "lock:order:2", 5*time.Second)
	assert.NoError(t, err)
}

func TestLeaseExpires(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "lock:order:7", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	// The lease lapsed, so the key is free again.
	_, err = l.Acquire(ctx, "lock:order:7", time.Second)
	assert.NoError(t, err)
}

func TestRelease_NotOwner(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	token, err := l.Acquire(ctx, "lock:order:7", time.Second)
	require.NoError(t, err)

	// Lease expires and someone else takes the lock.
	mr.FastForward(2 * time.Second)
	_, err = l.Acquire(ctx, "lock:order:7", time.Minute)
	require.NoError(t, err)

	// The original holder's stale token must not release the new
	// holder's lock.
	err = l.Release(ctx, "lock:order:7", token)
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = l.Acquire(ctx, "lock:order:7", time.Minute)
	assert.ErrorIs(t, err, ErrBusy, "the new holder must still own the lock")
}

func TestRelease_MissingKey(t *testing.T) {
	l, _ := newTestLocker(t)

	err := l.Release(context.Background(), "lock:order:404", "deadbeef")
	assert.ErrorIs(t, err, ErrNotOwner)
}
