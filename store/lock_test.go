package store_test

import (
	"testing"
	"time"

	"github.com/ridge/redstone/retry"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/storemem"
	"github.com/ridge/redstone/test"
	"github.com/stretchr/testify/require"
)

func quickRetry() retry.Config {
	return retry.FixedConfig{RetryAfter: time.Millisecond, MaxAttempts: 3}
}

func TestLockAcquireRelease(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	locker := store.NewLocker(conn, quickRetry(), time.Minute)

	release, err := locker.Acquire(ctx, "lock:boat:name")
	require.NoError(t, err)
	n, err := store.Int(conn.Execute(ctx, "exists", "lock:boat:name"))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	release()
	n, err = store.Int(conn.Execute(ctx, "exists", "lock:boat:name"))
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestLockContention(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	locker := store.NewLocker(conn, quickRetry(), time.Minute)

	release, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)
	defer release()

	// a second holder without a shared lock context times out
	_, err = locker.Acquire(ctx, "lock:k")
	require.ErrorIs(t, err, store.ErrLockTimeout)
}

func TestLockReentrancy(t *testing.T) {
	ctx := store.WithLockContext(test.Context(t))
	conn := storemem.New()
	locker := store.NewLocker(conn, quickRetry(), time.Minute)

	outer, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)
	inner, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)

	// the inner release is a no-op; the outermost holder owns the lock
	inner()
	n, err := store.Int(conn.Execute(ctx, "exists", "lock:k"))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	outer()
	n, err = store.Int(conn.Execute(ctx, "exists", "lock:k"))
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestLockExpiry(t *testing.T) {
	ctx := test.Context(t)
	now := time.Now()
	conn := storemem.New(storemem.WithClock(func() time.Time { return now }))
	locker := store.NewLocker(conn, quickRetry(), 50*time.Millisecond)

	_, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)

	// an orphaned lock stops blocking once its TTL passes
	now = now.Add(time.Second)
	release, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)
	release()
}

func TestLockUnlockWithoutScripting(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New(storemem.WithoutScripting())
	locker := store.NewLocker(conn, quickRetry(), time.Minute)

	release, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)
	release()
	n, err := store.Int(conn.Execute(ctx, "exists", "lock:k"))
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestLockDoesNotReleaseSuccessor(t *testing.T) {
	ctx := test.Context(t)
	now := time.Now()
	conn := storemem.New(storemem.WithClock(func() time.Time { return now }))
	locker := store.NewLocker(conn, quickRetry(), 50*time.Millisecond)

	release, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)

	// the first lock expires and another writer takes over
	now = now.Add(time.Second)
	release2, err := locker.Acquire(ctx, "lock:k")
	require.NoError(t, err)
	defer release2()

	// the stale release must not delete the successor's lock
	release()
	n, err := store.Int(conn.Execute(ctx, "exists", "lock:k"))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
