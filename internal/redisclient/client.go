package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"catalog-service/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

// ErrLockTimeout is returned when a lock could not be acquired before the
// wait deadline.
var ErrLockTimeout = errors.New("timed out waiting for lock")

const lockRetryInterval = 25 * time.Millisecond

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	lockTTL       time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, lockTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		lockTTL:       lockTTL,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// AcquireLock tries once to take the lock. The returned token must be
// passed to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, lockKeyFor(lockKey), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock failed: %w", err)
	}
	return token, ok, nil
}

// ReleaseLock releases a lock if token still owns it. A lock that expired
// and was taken by someone else is left alone.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKeyFor(lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// Lock blocks until the lock is held, ctx is done or the lock TTL elapses,
// whichever comes first. The returned func releases it.
func (c *Client) Lock(ctx context.Context, lockKey string) (func(), error) {
	start := time.Now()
	deadline := start.Add(c.lockTTL)

	for {
		token, ok, err := c.AcquireLock(ctx, lockKey, c.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			util.LockWaitLatency.Observe(time.Since(start).Seconds())
			return func() {
				// release even if the caller's ctx was cancelled
				if err := c.ReleaseLock(context.Background(), lockKey, token); err != nil {
					util.GetLogger().Warn("Failed to release lock",
						zap.String("lock", lockKey), zap.Error(err))
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func lockKeyFor(name string) string {
	return fmt.Sprintf("lock:catalog:%s", name)
}
