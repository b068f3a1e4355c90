package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/internal/models"
)

// StatsSource is anything that can produce final match stats.
type StatsSource interface {
	GetFinalStats(ctx context.Context, matchAPIID string) (map[string]models.PlayerStat, error)
}

// Cached is a read-through Redis cache in front of a StatsSource. Final stats
// do not change once a match is over, so a hit is served without revalidation.
// Redis failures are logged and bypassed.
type Cached struct {
	next  StatsSource
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewCached(next StatsSource, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Cached {
	return &Cached{
		next:  next,
		redis: rdb,
		ttl:   ttl,
		log:   log.Named("stats_cache"),
	}
}

func cacheKey(matchAPIID string) string {
	return fmt.Sprintf("stats:final:%s", matchAPIID)
}

func (c *Cached) GetFinalStats(ctx context.Context, matchAPIID string) (map[string]models.PlayerStat, error) {
	key := cacheKey(matchAPIID)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var stats map[string]models.PlayerStat
		if err := json.Unmarshal(data, &stats); err == nil {
			return stats, nil
		}
		c.log.Warn("discarding unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
	}

	stats, err := c.next.GetFinalStats(ctx, matchAPIID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

// Nop never has stats; settlement falls back to recorded figures.
type Nop struct{}

func (Nop) GetFinalStats(context.Context, string) (map[string]models.PlayerStat, error) {
	return nil, nil
}
