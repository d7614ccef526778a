package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned when another holder owns the key.
	ErrLockHeld = errors.New("platform/cache: lock held by another owner")
	// ErrLockLost is returned by Extend once the key expired or changed owner.
	ErrLockLost = errors.New("platform/cache: lock no longer owned")
)

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only when the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker hands out expiring mutual-exclusion locks backed by Redis.
type Locker struct {
	client redis.UniversalClient
}

// NewLocker constructs a Locker.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Lock is a held lock. Release must be called once the critical section ends.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// Acquire tries to take key for ttl without blocking.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("platform/cache: locker not configured")
	}
	if key == "" {
		return nil, errors.New("platform/cache: lock key required")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/cache: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: l.client, key: key, token: token, ttl: ttl}, nil
}

// Extend pushes the expiry back to a full ttl from now. It returns ErrLockLost
// when the lock expired or another holder took the key.
func (l *Lock) Extend(ctx context.Context) error {
	if l == nil {
		return ErrLockLost
	}
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/cache: extend %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// TTL returns the expiry the lock was acquired with.
func (l *Lock) TTL() time.Duration {
	if l == nil {
		return 0
	}
	return l.ttl
}

// Release frees the lock if it is still owned by this holder.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/cache: release %s: %w", l.key, err)
	}
	return nil
}

// Key returns the Redis key guarded by the lock.
func (l *Lock) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}
