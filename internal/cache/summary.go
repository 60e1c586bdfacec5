package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	progressdomain "github.com/smallbiznis/escrutinio/internal/progress/domain"
)

const keySummary = "escrutinio:summary"

type memorySummaryCache struct {
	items Cache[string, progressdomain.Summary]
}

// NewMemorySummaryCache keeps the summary in process.
func NewMemorySummaryCache() progressdomain.SummaryCache {
	return &memorySummaryCache{items: NewTTLCache[string, progressdomain.Summary]()}
}

func (c *memorySummaryCache) Get(ctx context.Context) (progressdomain.Summary, bool, error) {
	summary, ok := c.items.Get(keySummary)
	return summary, ok, nil
}

func (c *memorySummaryCache) Set(ctx context.Context, summary progressdomain.Summary, ttl time.Duration) error {
	c.items.Set(keySummary, summary, ttl)
	return nil
}

type redisSummaryCache struct {
	client *redis.Client
}

// NewRedisSummaryCache shares the summary between API replicas.
func NewRedisSummaryCache(client *redis.Client) progressdomain.SummaryCache {
	return &redisSummaryCache{client: client}
}

func (c *redisSummaryCache) Get(ctx context.Context) (progressdomain.Summary, bool, error) {
	raw, err := c.client.Get(ctx, keySummary).Bytes()
	if errors.Is(err, redis.Nil) {
		return progressdomain.Summary{}, false, nil
	}
	if err != nil {
		return progressdomain.Summary{}, false, err
	}

	var summary progressdomain.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return progressdomain.Summary{}, false, err
	}
	return summary, true, nil
}

func (c *redisSummaryCache) Set(ctx context.Context, summary progressdomain.Summary, ttl time.Duration) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keySummary, raw, ttl).Err()
}
