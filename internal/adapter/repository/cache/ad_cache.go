package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/marketplace/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const adKeyPrefix = "ad:"

// AdCache stores single ads as JSON under "ad:<id>".
type AdCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logger.Logger
}

func NewAdCache(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *AdCache {
	return &AdCache{
		client: client,
		ttl:    ttl,
		logger: log.Named("AdCache"),
	}
}

func adKey(id string) string { return adKeyPrefix + id }

// Get returns (nil, nil) on a miss.
func (c *AdCache) Get(ctx context.Context, id string) (*domain.Ad, error) {
	data, err := c.client.Get(ctx, adKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("AdCache.Get for key '%s': %w", adKey(id), err)
	}
	var ad domain.Ad
	if err := json.Unmarshal(data, &ad); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", adKey(id)), zap.Error(err))
		_ = c.client.Del(ctx, adKey(id)).Err()
		return nil, nil
	}
	return &ad, nil
}

func (c *AdCache) Set(ctx context.Context, ad *domain.Ad) error {
	data, err := json.Marshal(ad)
	if err != nil {
		return fmt.Errorf("AdCache.Set marshal: %w", err)
	}
	if err := c.client.Set(ctx, adKey(ad.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("AdCache.Set for key '%s': %w", adKey(ad.ID), err)
	}
	c.logger.Debug("Ad cached", zap.String("key", adKey(ad.ID)), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *AdCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, adKey(id)).Err(); err != nil {
		return fmt.Errorf("AdCache.Delete for key '%s': %w", adKey(id), err)
	}
	return nil
}
