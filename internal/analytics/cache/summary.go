package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/alankar/internal/analytics/domain"
	"github.com/smallbiznis/alankar/internal/config"
	"go.uber.org/zap"
)

const (
	keySummary        = "analytics:summary:%s"
	keySummaryRefresh = "%s:refresh"
	refreshTTL        = 30 * time.Second
)

// releaseRefresh drops the refresh marker only while it still carries the
// writer's token, so an expired writer never clears a newer one.
var releaseRefresh = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// SummaryKey scopes a cached summary to the reporting day so the trailing
// window never outlives its date.
func SummaryKey(day string) string {
	return fmt.Sprintf(keySummary, day)
}

// RefreshKey is the marker a replica holds while it writes key.
func RefreshKey(key string) string {
	return fmt.Sprintf(keySummaryRefresh, key)
}

// RedisSummaryCache stores summaries as JSON. Only the replica holding the
// refresh marker writes, so concurrent misses write once.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewSummaryCache returns nil (caching off) without a client or a positive TTL.
func NewSummaryCache(client *redis.Client, cfg config.Config, log *zap.Logger) domain.Cache {
	if client == nil || cfg.SummaryCacheTTL <= 0 {
		return nil
	}
	return &RedisSummaryCache{
		client: client,
		ttl:    cfg.SummaryCacheTTL,
		log:    log.Named("analytics.cache"),
	}
}

func (c *RedisSummaryCache) Get(ctx context.Context, key string) (*domain.Summary, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	var summary domain.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		c.log.Warn("discarding unreadable cached summary", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &summary, nil
}

// Set writes summary unless another replica is already refreshing key.
func (c *RedisSummaryCache) Set(ctx context.Context, key string, summary domain.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	marker := RefreshKey(key)
	token := uuid.NewString()
	held, err := c.client.SetNX(ctx, marker, token, refreshTTL).Result()
	if err != nil {
		return fmt.Errorf("claim summary refresh: %w", err)
	}
	if !held {
		c.log.Debug("summary refresh in flight elsewhere", zap.String("key", key))
		return nil
	}
	defer func() {
		if err := releaseRefresh.Run(ctx, c.client, []string{marker}, token).Err(); err != nil {
			c.log.Warn("release summary refresh", zap.String("key", key), zap.Error(err))
		}
	}()

	return c.client.Set(ctx, key, data, c.ttl).Err()
}
