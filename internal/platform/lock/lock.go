// Package lock provides the cluster-wide advisory lock scheduled workers
// acquire before running. Correctness of the worker family does not depend on
// in-process primitives: many service instances run the same timers, and only
// the instance holding the lock for a worker name executes that run. The rest
// skip — no queueing, no retry on a lock miss.
//
// Two durations govern each lock:
//   - max hold: the redis key TTL. If the process dies mid-run the lock
//     self-expires and another instance can run.
//   - min hold: on release, the key is kept alive until minHold has elapsed
//     since acquisition, so a fast run cannot immediately re-fire on another
//     instance that is marginally behind on its timer.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Handle represents a held lock. Release is safe to call exactly once.
type Handle interface {
	Release(ctx context.Context) error
}

// Locker acquires named locks. Acquire returns held=false (and a nil handle)
// when another instance holds the lock; that is not an error.
type Locker interface {
	Acquire(ctx context.Context, name string, minHold, maxHold time.Duration) (Handle, bool, error)
}

// RedisLocker implements Locker on a shared redis instance using
// SET NX PX plus a token check on release so an expired-and-reacquired lock
// is never released by the previous holder.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client, prefix: "esupervision:joblock:"}
}

// releaseScript keeps the key alive for the remaining min-hold window instead
// of deleting it when the run finished early; deletes it otherwise. Only the
// holder's token may touch the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
local remaining = tonumber(ARGV[2])
if remaining > 0 then
  return redis.call("PEXPIRE", KEYS[1], remaining)
end
return redis.call("DEL", KEYS[1])
`)

func (l *RedisLocker) Acquire(ctx context.Context, name string, minHold, maxHold time.Duration) (Handle, bool, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, maxHold).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisHandle{
		locker:     l,
		key:        key,
		token:      token,
		acquiredAt: time.Now(),
		minHold:    minHold,
	}, true, nil
}

type redisHandle struct {
	locker     *RedisLocker
	key        string
	token      string
	acquiredAt time.Time
	minHold    time.Duration
}

func (h *redisHandle) Release(ctx context.Context) error {
	remaining := h.minHold - time.Since(h.acquiredAt)
	if remaining < 0 {
		remaining = 0
	}
	err := releaseScript.Run(ctx, h.locker.client, []string{h.key},
		h.token, remaining.Milliseconds()).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", h.key, err)
	}
	return nil
}

// MemoryLocker implements Locker in-process. Used in tests and when redis is
// not configured (single-instance development mode).
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	heldUntil time.Time // max-hold expiry while held, min-hold floor after release
	released  bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock)}
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, minHold, maxHold time.Duration) (Handle, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.locks[name]; ok && now.Before(cur.heldUntil) {
		return nil, false, nil
	}
	l.locks[name] = memoryLock{heldUntil: now.Add(maxHold)}
	return &memoryHandle{locker: l, name: name, acquiredAt: now, minHold: minHold}, true, nil
}

type memoryHandle struct {
	locker     *MemoryLocker
	name       string
	acquiredAt time.Time
	minHold    time.Duration
}

func (h *memoryHandle) Release(context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()

	floor := h.acquiredAt.Add(h.minHold)
	if time.Now().After(floor) {
		delete(h.locker.locks, h.name)
		return nil
	}
	h.locker.locks[h.name] = memoryLock{heldUntil: floor, released: true}
	return nil
}
