package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const (
	reportKeyPrefix     = "growth:public-report:"
	generationKeyPrefix = "growth:public-report-gen:"
)

// ReportCache holds public reports by access token. A fill carries the
// generation observed before the report was read from storage and is
// discarded when a write has invalidated the token since.
type ReportCache interface {
	Get(ctx context.Context, token string) (*models.PublicReport, bool, error)
	Generation(ctx context.Context, token string) (int64, error)
	Set(ctx context.Context, token string, generation int64, report models.PublicReport) error
	Invalidate(ctx context.Context, token string) error
}

type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache returns a no-op cache when Redis is disabled or ttl is not
// positive.
func NewReportCache(client *redis.Client, ttl time.Duration) ReportCache {
	if client == nil || ttl <= 0 {
		return NoopReportCache{}
	}
	return &RedisReportCache{client: client, ttl: ttl}
}

func (c *RedisReportCache) Get(ctx context.Context, token string) (*models.PublicReport, bool, error) {
	raw, err := c.client.Get(ctx, reportKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var report models.PublicReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) Generation(ctx context.Context, token string) (int64, error) {
	return readGeneration(ctx, c.client, token)
}

// Set stores report only while the token's generation still equals
// generation. A concurrent Invalidate aborts the transaction.
func (c *RedisReportCache) Set(ctx context.Context, token string, generation int64, report models.PublicReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	genKey := generationKeyPrefix + token
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, token)
		if err != nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, reportKeyPrefix+token, raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate bumps the generation before dropping the entry so that fills
// already in flight are rejected.
func (c *RedisReportCache) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKeyPrefix+token)
		pipe.Del(ctx, reportKeyPrefix+token)
		return nil
	})
	return err
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, client stringGetter, token string) (int64, error) {
	generation, err := client.Get(ctx, generationKeyPrefix+token).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

type NoopReportCache struct{}

func (NoopReportCache) Get(context.Context, string) (*models.PublicReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Generation(context.Context, string) (int64, error) { return 0, nil }

func (NoopReportCache) Set(context.Context, string, int64, models.PublicReport) error { return nil }

func (NoopReportCache) Invalidate(context.Context, string) error { return nil }
