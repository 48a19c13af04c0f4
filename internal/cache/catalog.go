// Package cache puts a Redis read-through layer in front of the catalog queries the
// dialog runs on every turn.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"barberbot/internal/model"
)

const keyPrefix = "barberbot:catalog:"

// Source is the uncached catalog.
type Source interface {
	ListActiveBarbers(ctx context.Context) ([]model.Barber, error)
	FindBarberByName(ctx context.Context, name string) (model.Barber, error)
	FindBarberByID(ctx context.Context, id int64) (model.Barber, error)
	ListActiveServices(ctx context.Context) ([]model.Service, error)
	FindServiceByName(ctx context.Context, name string) (model.Service, error)
	FindServiceByID(ctx context.Context, id int64) (model.Service, error)
}

// Catalog serves lists and id lookups from Redis, falling back to the source on a
// miss or on any Redis failure. Name lookups always hit the source.
type Catalog struct {
	source Source
	redis  redis.UniversalClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewCatalog(source Source, client redis.UniversalClient, ttl time.Duration, logger *zerolog.Logger) *Catalog {
	return &Catalog{source: source, redis: client, ttl: ttl, logger: logger}
}

func (c *Catalog) ListActiveBarbers(ctx context.Context) ([]model.Barber, error) {
	return readThrough(ctx, c, "barbers", c.source.ListActiveBarbers)
}

func (c *Catalog) ListActiveServices(ctx context.Context) ([]model.Service, error) {
	return readThrough(ctx, c, "services", c.source.ListActiveServices)
}

func (c *Catalog) FindBarberByID(ctx context.Context, id int64) (model.Barber, error) {
	return readThrough(ctx, c, fmt.Sprintf("barber:%d", id), func(ctx context.Context) (model.Barber, error) {
		return c.source.FindBarberByID(ctx, id)
	})
}

func (c *Catalog) FindServiceByID(ctx context.Context, id int64) (model.Service, error) {
	return readThrough(ctx, c, fmt.Sprintf("service:%d", id), func(ctx context.Context) (model.Service, error) {
		return c.source.FindServiceByID(ctx, id)
	})
}

func (c *Catalog) FindBarberByName(ctx context.Context, name string) (model.Barber, error) {
	return c.source.FindBarberByName(ctx, name)
}

func (c *Catalog) FindServiceByName(ctx context.Context, name string) (model.Service, error) {
	return c.source.FindServiceByName(ctx, name)
}

// Invalidate drops every cached catalog entry. Call it after a catalog sync.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	var keys []string
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate catalog: %w", err)
	}
	c.logger.Debug().Int("keys", len(keys)).Msg("catalog cache invalidated")
	return nil
}

// readThrough serves key from the cache or loads and stores it.
func readThrough[T any](ctx context.Context, c *Catalog, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.readCache(ctx, key, &cached) {
		return cached, nil
	}
	val, err := load(ctx)
	if err != nil {
		return val, err
	}
	c.writeCache(ctx, key, val)
	return val, nil
}

func (c *Catalog) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		}
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Catalog) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}
