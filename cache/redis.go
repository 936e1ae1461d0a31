package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raushankrgupta/gait-speed-service/models"
)

const adminListKey = "gait-speed:admin-list"

// RedisAdminListCache shares the admin list between server replicas. Redis
// failures degrade to cache misses.
type RedisAdminListCache struct {
	client *redis.Client
	ttl    time.Duration
	key    string
}

func NewRedisAdminListCache(client *redis.Client, ttl time.Duration) *RedisAdminListCache {
	return &RedisAdminListCache{client: client, ttl: ttl, key: adminListKey}
}

// NewRedisClient connects to addr and pings it
func NewRedisClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisAdminListCache) Get(ctx context.Context) ([]models.Admin, bool) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("admin list cache read failed", "error", err)
		}
		return nil, false
	}

	var admins []models.Admin
	if err := json.Unmarshal(val, &admins); err != nil {
		slog.Warn("admin list cache entry is corrupt", "error", err)
		return nil, false
	}
	return admins, true
}

func (c *RedisAdminListCache) Set(ctx context.Context, admins []models.Admin) {
	payload, err := json.Marshal(admins)
	if err != nil {
		slog.Warn("admin list cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		slog.Warn("admin list cache write failed", "error", err)
	}
}

func (c *RedisAdminListCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		slog.Warn("admin list cache invalidation failed", "error", err)
	}
}
