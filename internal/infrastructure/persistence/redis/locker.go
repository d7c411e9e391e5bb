package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

// releaseLuaScript deletes the lock only if it still carries our token, so a
// lock that expired and was taken by another instance is left alone.
const releaseLuaScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

type Locker struct {
	client        *redis.Client
	releaseScript *redis.Script

	mu     sync.Mutex
	tokens map[string]lockHandle
}

type lockHandle struct {
	token    string
	acquired time.Time
}

func NewLocker(conn *Connection) *Locker {
	return &Locker{
		client:        conn.GetClient(),
		releaseScript: redis.NewScript(releaseLuaScript),
		tokens:        make(map[string]lockHandle),
	}
}

func (l *Locker) DistributedLock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey(key), token, expiration).Result()
	if err != nil {
		monitoring.RecordLockFailure(key, "redis_error")
		return false, err
	}
	if !ok {
		monitoring.RecordLockFailure(key, "already_locked")
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = lockHandle{token: token, acquired: time.Now()}
	l.mu.Unlock()

	monitoring.RecordLockSuccess(key)
	return true, nil
}

func (l *Locker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	handle, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	monitoring.ObserveLockHold(key, time.Since(handle.acquired))
	return l.releaseScript.Run(ctx, l.client, []string{lockKey(key)}, handle.token).Err()
}

func lockKey(key string) string {
	return "lock:" + key
}
