package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "session:"

// SessionCache maps session tokens to user ids.
type SessionCache struct {
	client redis.Cmdable
	logger *logger.Logger
}

func NewSessionCache(client redis.Cmdable, log *logger.Logger) *SessionCache {
	return &SessionCache{client: client, logger: log.Named("SessionCache")}
}

func (c *SessionCache) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, sessionKeyPrefix+token, userID, ttl).Err(); err != nil {
		c.logger.Error("Failed to cache session", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// Lookup returns "" when the token is not cached.
func (c *SessionCache) Lookup(ctx context.Context, token string) (string, error) {
	userID, err := c.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (c *SessionCache) Drop(ctx context.Context, token string) error {
	return c.client.Del(ctx, sessionKeyPrefix+token).Err()
}
