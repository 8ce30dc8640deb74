package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kjstillabower/climate-insights/internal/models"
)

// RedisCache implements Cache on a single Redis instance. Expiry is delegated to Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr and verifies it with PING. timeout bounds dial,
// read and write; zero keeps the client defaults.
func NewRedisCache(addr, password string, db int, timeout time.Duration) (*RedisCache, error) {
	opts := &redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// newRedisCacheFromClient wraps an existing client without pinging it.
func newRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.Principal, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Principal{}, false, nil
		}
		return models.Principal{}, false, fmt.Errorf("failed to get from Redis: %w", err)
	}
	var p models.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Principal{}, false, fmt.Errorf("decode cached principal: %w", err)
	}
	return p, true, nil
}

// Set stores the principal with ttl. A non-positive ttl is a no-op, since Redis would
// otherwise keep the key forever.
func (c *RedisCache) Set(ctx context.Context, key string, value models.Principal, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set data in Redis: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var (
	_ Cache = (*InMemoryCache)(nil)
	_ Cache = (*MemcachedCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
