package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-slot-booking/internal/dialogue"
)

// SessionLocker serializes receptionist turns of one dialogue session across API replicas.
// It guards session state only; slot claims never take a lock.
type SessionLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionLocker(client *redis.Client, ttl time.Duration) *SessionLocker {
	return &SessionLocker{
		client: client,
		ttl:    ttl,
	}
}

func lockKey(sessionID string) string {
	return "lock:dialogue:" + sessionID
}

func (l *SessionLocker) WithSessionLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	key := lockKey(sessionID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return dialogue.ErrSessionBusy
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
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

func (l *SessionLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}

var _ dialogue.TurnLocker = (*SessionLocker)(nil)
