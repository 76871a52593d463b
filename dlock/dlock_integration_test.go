//go:build integration

package dlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pipestream/broker/testkit"
	"github.com/stretchr/testify/require"
)

func newEtcdLockerForTest(t *testing.T) Locker {
	t.Helper()
	locker, err := NewEtcd(testkit.GetEtcdConnector(t), &Config{
		Driver:        DriverEtcd,
		Prefix:        "/dlock/test/",
		DefaultTTL:    10 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	return locker
}

func TestEtcdLockUnlock(t *testing.T) {
	locker := newEtcdLockerForTest(t)
	defer locker.Close()

	ctx := context.Background()
	key := "lock-unlock"

	require.NoError(t, locker.Lock(ctx, key))
	require.NoError(t, locker.Unlock(ctx, key))
}

func TestEtcdTryLockContended(t *testing.T) {
	locker := newEtcdLockerForTest(t)
	defer locker.Close()

	other := newEtcdLockerForTest(t)
	defer other.Close()

	ctx := context.Background()
	key := "trylock-contended"

	require.NoError(t, locker.Lock(ctx, key))
	defer locker.Unlock(ctx, key)

	ok, err := other.TryLock(ctx, key)
	require.NoError(t, err)
	require.False(t, ok, "expected lock held by another owner to fail TryLock")
}

func TestEtcdLockSerializesCriticalSection(t *testing.T) {
	locker := newEtcdLockerForTest(t)
	defer locker.Close()

	other := newEtcdLockerForTest(t)
	defer other.Close()

	ctx := context.Background()
	key := "serialize"

	var inCriticalSection int32
	var sawOverlap int32
	var wg sync.WaitGroup
	wg.Add(2)

	run := func(l Locker) {
		defer wg.Done()
		require.NoError(t, l.Lock(ctx, key))
		defer l.Unlock(ctx, key)
		if atomic.AddInt32(&inCriticalSection, 1) > 1 {
			atomic.StoreInt32(&sawOverlap, 1)
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&inCriticalSection, -1)
	}

	go run(locker)
	go run(other)
	wg.Wait()

	require.Zero(t, atomic.LoadInt32(&sawOverlap), "lock should have serialized the critical section")
}

func TestEtcdUnlockNotHeld(t *testing.T) {
	locker := newEtcdLockerForTest(t)
	defer locker.Close()

	err := locker.Unlock(context.Background(), "never-locked")
	require.ErrorIs(t, err, ErrLockNotHeld)
}
