package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

func key(asset string, side domain.Side) string {
	return "depth:" + asset + ":" + string(side)
}

func (c *RedisCache) SetDepth(ctx context.Context, snap *domain.DepthSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(snap.Asset, snap.Side), b, c.ttl).Err()
}

// GetDepth returns (nil, nil) on a cache miss.
func (c *RedisCache) GetDepth(ctx context.Context, asset string, side domain.Side) (*domain.DepthSnapshot, error) {
	b, err := c.client.Get(ctx, key(asset, side)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.DepthSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, asset string) error {
	return c.client.Del(ctx,
		key(asset, domain.Lend),
		key(asset, domain.Borrow),
	).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
