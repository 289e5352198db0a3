package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/farewatch/core"
)

const defaultKeyPrefix = "farewatch:session:"

var _ core.CacheWithStats = (*RedisCache)(nil)

// RedisCache shares verified sessions between server replicas.
// Entries live for the cache TTL or until the session expires, whichever is first.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// redisRecord is the stored JSON. core.Session hides the hash from JSON.
type redisRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRedisCache wraps an existing client. An empty prefix uses "farewatch:session:".
func NewRedisCache(client redis.Cmdable, prefix string, c core.CacheConfig) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: c.TTL, now: time.Now}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) key(tokenHash string) string {
	return c.prefix + tokenHash
}

func (c *RedisCache) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	raw, err := c.client.Get(ctx, c.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, core.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// unreadable entry is treated as a miss and dropped
		c.misses.Add(1)
		_ = c.client.Del(ctx, c.key(tokenHash)).Err()
		return nil, core.ErrCacheNotFound
	}

	c.hits.Add(1)
	return &core.Session{
		ID:        rec.ID,
		UserID:    rec.UserID,
		TokenHash: rec.TokenHash,
		IPAddress: rec.IPAddress,
		UserAgent: rec.UserAgent,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (c *RedisCache) Set(ctx context.Context, tokenHash string, session *core.Session) error {
	ttl := c.ttl
	if remaining := session.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(redisRecord{
		ID:        session.ID,
		UserID:    session.UserID,
		TokenHash: session.TokenHash,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.key(tokenHash), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	c.sets.Add(1)
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, tokenHash string) error {
	n, err := c.client.Del(ctx, c.key(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	c.deletes.Add(n)
	return nil
}

// Clear removes every key under the prefix. Other keys in the database are untouched.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Stats reports client-side counters. Size is not tracked for a shared cache.
func (c *RedisCache) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		TTL:     c.ttl,
	}
}
