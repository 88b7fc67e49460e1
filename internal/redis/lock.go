package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	// ErrLockUnavailable means the lock store could not be reached, as
	// opposed to the key being held by another writer.
	ErrLockUnavailable = errors.New("slot lock store unavailable")
)

// Locker is used by the appointment service to serialise writers that target
// the same professional and start time.
type Locker interface {
	WithSlotLock(ctx context.Context, proID uuid.UUID, slot time.Time, fn func(ctx context.Context) error) error
}

// LockOptions tunes acquisition. Retries is the number of extra attempts after
// the first one fails on contention.
type LockOptions struct {
	TTL          time.Duration
	Retries      int
	RetryBackoff time.Duration
}

type redisSlotLocker struct {
	client *redis.Client
	opts   LockOptions
}

// NewRedisSlotLocker creates a locker that uses a per (professional, slot) Redis key
func NewRedisSlotLocker(client *redis.Client, opts LockOptions) Locker {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	return &redisSlotLocker{
		client: client,
		opts:   opts,
	}
}

// SlotLockKey is the Redis key guarding one start time of one professional.
func SlotLockKey(proID uuid.UUID, slot time.Time) string {
	return fmt.Sprintf("lock:booking:%s:%d", proID.String(), slot.UTC().Unix())
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, proID uuid.UUID, slot time.Time, fn func(ctx context.Context) error) error {
	key := SlotLockKey(proID, slot)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// Release even if ctx was cancelled inside fn.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w: %v", ErrLockUnavailable, err)
		}
		if ok {
			return nil
		}
		if attempt >= l.opts.Retries {
			return ErrLockNotAcquired
		}

		backoff := l.opts.RetryBackoff * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-instance deployments and
// tests. It never blocks: a held key fails fast with ErrLockNotAcquired.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) WithSlotLock(ctx context.Context, proID uuid.UUID, slot time.Time, fn func(ctx context.Context) error) error {
	key := SlotLockKey(proID, slot)

	l.mu.Lock()
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
