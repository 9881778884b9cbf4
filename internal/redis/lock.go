package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("reservation lock not acquired")
)

// Locker guards the check-then-write window of a booking. Keys are scoped to
// a therapist-day or a client-day so unrelated bookings never contend.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// TherapistDayKey is the reservation key for one therapist on one date.
func TherapistDayKey(therapistID uuid.UUID, dateKey string) string {
	return fmt.Sprintf("lock:therapist:%s:%s", therapistID, dateKey)
}

// ClientDayKey is the reservation key for one client on one date.
func ClientDayKey(clientID uuid.UUID, dateKey string) string {
	return fmt.Sprintf("lock:client:%s:%s", clientID, dateKey)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker backed by SET NX keys with a per-holder token.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
	}
}

// WithLock acquires every key in sorted order, runs fn, and releases the keys
// it holds. It fails fast with ErrLockNotAcquired when any key is taken.
func (l *redisLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	ordered := dedupeSorted(keys)
	token := uuid.NewString()

	held := make([]string, 0, len(ordered))
	defer func() {
		for _, key := range held {
			_ = l.release(context.WithoutCancel(ctx), key, token)
		}
	}()

	for _, key := range ordered {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			return ErrLockNotAcquired
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func dedupeSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NoopLocker runs fn without coordination. Single-process tools use it.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
