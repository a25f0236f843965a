package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("submission lock not acquired")
)

// Locker guards the booking submission of a widget instance so that one
// instance never has two submissions in flight, across server replicas.
type Locker interface {
	WithInstanceLock(ctx context.Context, instanceID string, fn func(ctx context.Context) error) error
}

type redisInstanceLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisInstanceLocker creates a locker that uses a per instance Redis key
func NewRedisInstanceLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisInstanceLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisInstanceLocker) WithInstanceLock(ctx context.Context, instanceID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:widget:%s:submit", instanceID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// released on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

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

func (l *redisInstanceLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release submission lock: %w", err)
	}
	return nil
}
