package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/promptvault/promptvault/internal/resolver"
)

const keyPrefix = "resolved:"

// RedisCache backs the resolver's document cache with Redis. Keys are the
// immutable (project, name, version) triple, so entries never need explicit
// invalidation; TTL expiry just triggers recomputation.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key resolver.DocumentKey) (*resolver.ResolvedDocument, error) {
	val, err := c.client.Get(ctx, keyPrefix+key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	var doc resolver.ResolvedDocument
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("decode cached document %s: %w", key, err)
	}
	return &doc, nil
}

func (c *RedisCache) Put(ctx context.Context, key resolver.DocumentKey, doc *resolver.ResolvedDocument, ttl time.Duration) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", key, err)
	}
	return c.client.Set(ctx, keyPrefix+key.String(), data, ttl).Err()
}
