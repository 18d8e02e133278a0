package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdhe/openrouter-go/pkg/openrouter"
)

// catalogKey holds the JSON-encoded model catalog shared by every gateway.
const catalogKey = "openrouter:models"

// RedisCache is the shared tier of the model catalog. Several gateway
// instances read and refresh one copy.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis. Stored catalogs expire after ttl.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// LoadCatalog returns the shared catalog and how long it has left before it
// expires. found is false when no catalog is stored.
func (r *RedisCache) LoadCatalog(ctx context.Context) (resp *openrouter.ListModelsResponse, remaining time.Duration, found bool, err error) {
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, catalogKey)
	pttl := pipe.PTTL(ctx, catalogKey)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("redis_cache: get catalog: %w", err)
	}

	val, err := get.Bytes()
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis_cache: get catalog: %w", err)
	}
	resp = new(openrouter.ListModelsResponse)
	if err := json.Unmarshal(val, resp); err != nil {
		return nil, 0, false, fmt.Errorf("redis_cache: unmarshal catalog: %w", err)
	}

	// A key without an expiry reports a negative TTL.
	remaining = pttl.Val()
	if remaining <= 0 || remaining > r.ttl {
		remaining = r.ttl
	}
	return resp, remaining, true, nil
}

// StoreCatalog replaces the shared catalog.
func (r *RedisCache) StoreCatalog(ctx context.Context, resp *openrouter.ListModelsResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("redis_cache: marshal catalog: %w", err)
	}
	if err := r.client.Set(ctx, catalogKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache: set catalog: %w", err)
	}
	return nil
}

// InvalidateCatalog drops the shared catalog.
func (r *RedisCache) InvalidateCatalog(ctx context.Context) error {
	if err := r.client.Del(ctx, catalogKey).Err(); err != nil {
		return fmt.Errorf("redis_cache: del catalog: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
