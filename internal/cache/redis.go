package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
)

// Cache wraps Redis for hot-path counters. When Redis is unreachable at
// startup the cache runs disabled: every read is a miss and writes are
// dropped, so the API keeps serving off Postgres alone.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	enabled bool
}

// New connects to Redis and probes it. Connection failure is not fatal.
func New(cfg config.RedisConfig, logger *slog.Logger) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, unread-count cache disabled",
			slog.String("addr", cfg.Addr),
			slog.Any("error", err))
		_ = client.Close()
		return &Cache{ttl: cfg.CacheTTL, logger: logger}
	}

	logger.Info("redis connected", slog.String("addr", cfg.Addr))
	return &Cache{
		client:  client,
		ttl:     cfg.CacheTTL,
		logger:  logger,
		enabled: true,
	}
}

// Enabled reports whether a live Redis connection backs this cache.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func unreadCountKey(userID string) string {
	return "notifications:unread:" + userID
}

// GetUnreadCount returns the cached unread total for a user. The
// second return value reports whether the cache had an answer.
func (c *Cache) GetUnreadCount(ctx context.Context, userID string) (int64, bool) {
	if !c.enabled {
		return 0, false
	}

	count, err := c.client.Get(ctx, unreadCountKey(userID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("unread count cache read failed",
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
		return 0, false
	}

	return count, true
}

// SetUnreadCount caches the unread total for a user.
func (c *Cache) SetUnreadCount(ctx context.Context, userID string, count int64) {
	if !c.enabled {
		return
	}

	if err := c.client.Set(ctx, unreadCountKey(userID), count, c.ttl).Err(); err != nil {
		c.logger.Warn("unread count cache write failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

// InvalidateUnreadCount drops the cached total after anything changes
// a user's notifications.
func (c *Cache) InvalidateUnreadCount(ctx context.Context, userID string) {
	if !c.enabled {
		return
	}

	if err := c.client.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		c.logger.Warn("unread count cache invalidation failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}
