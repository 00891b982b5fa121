package otc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

const (
	recordPrefix = "nexora:otc:"
	lockPrefix   = "nexora:otc:lock:"
)

// RedisStore keeps OTC records in Redis so several instances share them.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewRedisStore creates a Redis-backed OTC store.
func NewRedisStore(client redis.Cmdable, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	data, err := s.client.Get(ctx, recordPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %v", faults.ErrTransientStore, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("dropping malformed otc record", "error", err)
		_ = s.client.Del(ctx, recordPrefix+key).Err()
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, recordPrefix+rec.Key(), string(data), ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", faults.ErrTransientStore, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", faults.ErrTransientStore, err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis drops records when their TTL passes.
func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time, verifiedGrace time.Duration) (int, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)

// releaseScript deletes the lock only if it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker is a per-key lock shared across instances (SET NX PX with a
// random token, released by compare-and-delete).
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	retry  time.Duration
	token  func() string
	logger *slog.Logger
}

// NewRedisLocker creates a distributed locker. ttl bounds how long a crashed
// holder can keep a key locked.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		token:  randomToken,
		logger: logger,
	}
}

// Lock blocks until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := lockPrefix + key
	token := l.token()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: redis lock: %v", faults.ErrTransientStore, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := l.client.Eval(ctx, releaseScript, []string{lockKey}, token).Err(); err != nil {
					l.logger.Warn("failed to release otc lock", "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

var _ Locker = (*RedisLocker)(nil)

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
