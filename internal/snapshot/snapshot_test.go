package snapshot

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

	"github.com/hackgods/clinic-admin/internal/therapist"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

func countingLoader(n *atomic.Int64) LoaderFunc {
	return func(ctx context.Context) (Snapshot, error) {
		n.Add(1)
		return Snapshot{}, nil
	}
}

func TestGetCachesWithinTTL(t *testing.T) {
	var loads atomic.Int64
	store := NewStore(countingLoader(&loads), time.Minute, nil, logging.Discard())
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	first, err := store.Get(context.Background())
	require.NoError(t, err)
	second, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, loads.Load())

	now = now.Add(2 * time.Minute)
	third, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Greater(t, third.Generation, first.Generation)
	assert.EqualValues(t, 2, loads.Load())
}

func TestInvalidateForcesReload(t *testing.T) {
	var loads atomic.Int64
	store := NewStore(countingLoader(&loads), time.Hour, nil, logging.Discard())

	_, err := store.Get(context.Background())
	require.NoError(t, err)
	store.Invalidate()
	snap, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Generation)
	assert.EqualValues(t, 2, loads.Load())

	_, err = store.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, loads.Load())
}

func TestReloadDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	loader := LoaderFunc(func(ctx context.Context) (Snapshot, error) {
		if calls.Add(1) == 1 {
			<-release
			return Snapshot{Therapists: []therapist.Therapist{{Name: "stale"}}}, nil
		}
		return Snapshot{Therapists: []therapist.Therapist{{Name: "fresh"}}}, nil
	})
	store := NewStore(loader, time.Hour, nil, logging.Discard())

	var wg sync.WaitGroup
	var slow *Snapshot
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, _ = store.Reload(context.Background())
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	fast, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, fast.Generation)

	close(release)
	wg.Wait()

	require.NotNil(t, slow)
	assert.EqualValues(t, 2, slow.Generation)
	assert.Equal(t, "fresh", slow.Therapists[0].Name)
	assert.EqualValues(t, 2, store.Generation())
}

func TestReloadError(t *testing.T) {
	boom := errors.New("db down")
	store := NewStore(LoaderFunc(func(ctx context.Context) (Snapshot, error) { return Snapshot{}, boom }),
		time.Hour, nil, logging.Discard())

	_, err := store.Get(context.Background())
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, store.Generation())
}

func TestSnapshotLookups(t *testing.T) {
	active := therapist.Therapist{ID: uuid.New(), Name: "Dana", IsActive: true}
	inactive := therapist.Therapist{ID: uuid.New(), Name: "Ruth"}
	snap := &Snapshot{Therapists: []therapist.Therapist{active, inactive}}

	got, ok := snap.Therapist(inactive.ID)
	require.True(t, ok)
	assert.Equal(t, "Ruth", got.Name)
	_, ok = snap.Therapist(uuid.New())
	assert.False(t, ok)
	assert.Len(t, snap.ActiveTherapists(), 1)
}

func TestBroadcastInvalidatesOtherStores(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var loads atomic.Int64
	listening := NewStore(countingLoader(&loads), time.Hour, nil, logging.Discard())
	_, err := listening.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewBroadcaster(listening, rdb, logging.Discard()).Listen(ctx)

	publisher := NewBroadcaster(NewStore(countingLoader(new(atomic.Int64)), time.Hour, nil, logging.Discard()), rdb, logging.Discard())
	require.Eventually(t, func() bool {
		publisher.Changed()
		snap, err := listening.Get(context.Background())
		return err == nil && snap.Generation > 1
	}, 2*time.Second, 20*time.Millisecond)
}
