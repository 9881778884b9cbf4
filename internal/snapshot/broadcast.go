package snapshot

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-admin/pkg/logging"
)

// InvalidationChannel carries "something changed" notices between processes.
const InvalidationChannel = "clinic:snapshot:invalidate"

// Broadcaster invalidates the local store and tells other processes to do the same.
type Broadcaster struct {
	store  *Store
	rdb    *redis.Client
	logger *logging.Logger
}

func NewBroadcaster(store *Store, rdb *redis.Client, logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broadcaster{store: store, rdb: rdb, logger: logger}
}

// Changed is meant to be registered as a service OnChange hook.
func (b *Broadcaster) Changed() {
	b.store.Invalidate()
	if b.rdb == nil {
		return
	}
	if err := b.rdb.Publish(context.Background(), InvalidationChannel, "1").Err(); err != nil {
		b.logger.Warn("publish snapshot invalidation failed", "error", err)
	}
}

// Listen invalidates the store on every notice until ctx is done.
func (b *Broadcaster) Listen(ctx context.Context) {
	if b.rdb == nil {
		return
	}
	sub := b.rdb.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			b.store.Invalidate()
		}
	}
}
