// Package lock provides a Redis-backed mutex used to serialize host
// creation across importer processes sharing one store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/JonMunkholm/offerloader/internal/core"
)

// Defaults for Options.
const (
	DefaultTTL           = 10 * time.Second
	DefaultRetryInterval = 25 * time.Millisecond
	DefaultPrefix        = "offerloader:lock:"
)

var _ core.Locker = (*RedisLocker)(nil)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Options configures a RedisLocker.
type Options struct {
	// TTL bounds how long a crashed holder keeps the lock.
	TTL           time.Duration
	RetryInterval time.Duration
	Prefix        string
}

// RedisLocker implements core.Locker with SET NX and a token-checked release.
type RedisLocker struct {
	client *redis.Client
	opts   Options
}

// NewClient connects to addr and verifies the connection.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker returns a locker over client, filling unset options.
func NewRedisLocker(client *redis.Client, opts Options) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &RedisLocker{client: client, opts: opts}
}

// Lock blocks until key is acquired or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(name, token, l.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			return func() { l.release(name, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(name, token string) {
	err := releaseScript.Run(l.client, []string{name}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("failed to release lock", "key", name, "error", err)
	}
}
