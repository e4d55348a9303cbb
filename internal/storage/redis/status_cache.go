// Package redis caches live wallet silence statuses and token lifecycle state
// so dashboards can read them without touching the processor.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wallet-signal-lab/internal/domain"
	"wallet-signal-lab/internal/storage"
)

const keyPrefix = "wallet-signal"

// Options configures the cache connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // expiry of every written key, 0 keeps keys forever
}

// StatusCache stores the latest status per (mint, wallet) and the token state per mint.
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatusCache connects to Redis and verifies the connection.
func NewStatusCache(ctx context.Context, opts Options) (*StatusCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Verify connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &StatusCache{rdb: rdb, ttl: opts.TTL}, nil
}

// Close closes the Redis connection.
func (c *StatusCache) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity.
func (c *StatusCache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func statusKey(mint, wallet string) string {
	return fmt.Sprintf("%s:status:%s:%s", keyPrefix, mint, wallet)
}

func stateKey(mint string) string {
	return fmt.Sprintf("%s:state:%s", keyPrefix, mint)
}

// SetStatuses writes a batch of wallet statuses in one pipeline.
func (c *StatusCache) SetStatuses(ctx context.Context, mint string, statuses map[string]domain.SilenceStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for wallet, st := range statuses {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal status %s: %w", wallet, err)
		}
		pipe.Set(ctx, statusKey(mint, wallet), data, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write statuses: %w", err)
	}
	return nil
}

// GetStatus reads one wallet status. Returns storage.ErrNotFound when absent or expired.
func (c *StatusCache) GetStatus(ctx context.Context, mint, wallet string) (domain.SilenceStatus, error) {
	var st domain.SilenceStatus

	data, err := c.rdb.Get(ctx, statusKey(mint, wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return st, storage.ErrNotFound
		}
		return st, fmt.Errorf("get status: %w", err)
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("unmarshal status: %w", err)
	}
	return st, nil
}

// SetTokenState records the current lifecycle state of a mint.
func (c *StatusCache) SetTokenState(ctx context.Context, mint string, state domain.TokenState) error {
	return c.rdb.Set(ctx, stateKey(mint), string(state), c.ttl).Err()
}

// GetTokenState reads the lifecycle state of a mint. Returns storage.ErrNotFound when absent.
func (c *StatusCache) GetTokenState(ctx context.Context, mint string) (domain.TokenState, error) {
	s, err := c.rdb.Get(ctx, stateKey(mint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get token state: %w", err)
	}
	return domain.TokenState(s), nil
}
