package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/coastwatch/config"
	"example.com/coastwatch/internal/hub"
	"example.com/coastwatch/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a device has no cached reading
var ErrNotFound = errors.New("key not found in cache")

// RedisCache keeps the latest envelopes per device in Redis
type RedisCache struct {
	client     *redis.Client
	enabled    bool
	ttl        time.Duration
	recentSize int64
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return newRedisCache(client, cfg), nil
}

func newRedisCache(client *redis.Client, cfg config.RedisConfig) *RedisCache {
	recent := cfg.RecentSize
	if recent <= 0 {
		recent = 100
	}
	return &RedisCache{client: client, enabled: true, ttl: cfg.TTL, recentSize: recent}
}

// Enabled reports whether the cache is backed by Redis
func (c *RedisCache) Enabled() bool {
	return c.enabled
}

// StoreEnvelope saves the envelope as the device's latest and prepends it to its recent list
func (c *RedisCache) StoreEnvelope(ctx context.Context, env models.Envelope) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope for caching")
	}

	id := env.Reading.DeviceID
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, LatestReadingKey(id), data, c.ttl)
	pipe.LPush(ctx, RecentReadingsKey(id), data)
	pipe.LTrim(ctx, RecentReadingsKey(id), 0, c.recentSize-1)
	if c.ttl > 0 {
		pipe.Expire(ctx, RecentReadingsKey(id), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store envelope in Redis")
	}
	return nil
}

// Latest returns the raw JSON of the device's latest envelope
func (c *RedisCache) Latest(ctx context.Context, deviceID string) (json.RawMessage, error) {
	if !c.enabled {
		return nil, errors.New("cache is disabled")
	}

	data, err := c.client.Get(ctx, LatestReadingKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get value from Redis")
	}
	return data, nil
}

// Recent returns up to limit raw envelopes, newest first
func (c *RedisCache) Recent(ctx context.Context, deviceID string, limit int64) ([]json.RawMessage, error) {
	if !c.enabled {
		return nil, errors.New("cache is disabled")
	}

	items, err := c.client.LRange(ctx, RecentReadingsKey(deviceID), 0, limit-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read recent readings from Redis")
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = json.RawMessage(item)
	}
	return out, nil
}

// Handle stores envelopes arriving from the hub
func (c *RedisCache) Handle(ctx context.Context, msg hub.Message) error {
	env, ok := msg.Payload.(models.Envelope)
	if !ok {
		return nil
	}
	return c.StoreEnvelope(ctx, env)
}

// LatestReadingKey generates the cache key of a device's latest envelope
func LatestReadingKey(deviceID string) string {
	return fmt.Sprintf("reading:latest:%s", deviceID)
}

// RecentReadingsKey generates the cache key of a device's recent envelope list
func RecentReadingsKey(deviceID string) string {
	return fmt.Sprintf("reading:recent:%s", deviceID)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
