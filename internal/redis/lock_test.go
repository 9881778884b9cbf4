package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestWithLockReleasesKeys(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisLocker(rdb, time.Second)
	therapistKey := TherapistDayKey(uuid.New(), "2024-06-10")
	clientKey := ClientDayKey(uuid.New(), "2024-06-10")

	err := locker.WithLock(context.Background(), []string{therapistKey, clientKey}, func(ctx context.Context) error {
		assert.True(t, mr.Exists(therapistKey))
		assert.True(t, mr.Exists(clientKey))
		return nil
	})
	require.NoError(t, err)

	assert.False(t, mr.Exists(therapistKey))
	assert.False(t, mr.Exists(clientKey))
}

func TestWithLockFailsWhenHeld(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisLocker(rdb, time.Second)
	key := TherapistDayKey(uuid.New(), "2024-06-10")
	require.NoError(t, mr.Set(key, "someone-else"))

	called := false
	err := locker.WithLock(context.Background(), []string{key}, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)

	// A foreign holder's key is never released by us.
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithLockPartialAcquireReleasesHeldKeys(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisLocker(rdb, time.Second)
	free := "lock:a"
	taken := "lock:b"
	require.NoError(t, mr.Set(taken, "other"))

	err := locker.WithLock(context.Background(), []string{taken, free}, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, mr.Exists(free))
}

func TestWithLockPropagatesError(t *testing.T) {
	_, rdb := newTestClient(t)
	locker := NewRedisLocker(rdb, time.Second)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), []string{"lock:x"}, func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestWithLockSerializesConcurrentHolders(t *testing.T) {
	_, rdb := newTestClient(t)
	locker := NewRedisLocker(rdb, 5*time.Second)
	key := TherapistDayKey(uuid.New(), "2024-06-10")

	var entered, rejected int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := locker.WithLock(context.Background(), []string{key}, func(ctx context.Context) error {
				atomic.AddInt32(&entered, 1)
				<-release
				return nil
			})
			if errors.Is(err, ErrLockNotAcquired) {
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	close(start)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&entered)+atomic.LoadInt32(&rejected) == 8 ||
			(atomic.LoadInt32(&entered) == 1 && atomic.LoadInt32(&rejected) == 7)
	}, 2*time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&entered))
	assert.Equal(t, int32(7), atomic.LoadInt32(&rejected))
}

func TestOnce(t *testing.T) {
	_, rdb := newTestClient(t)
	ctx := context.Background()

	first, err := Once(ctx, rdb, "reminder:c1:2024-06-10", time.Hour)
	require.NoError(t, err)
	second, err := Once(ctx, rdb, "reminder:c1:2024-06-10", time.Hour)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}
