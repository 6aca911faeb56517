// Package alerts turns danger-level measurement events into a short, per
// facility list of recent alerts.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "growth:alerts:facility:"

	// MaxPerFacility bounds each facility list; older alerts are trimmed.
	MaxPerFacility = 100
)

// Store keeps recent alerts per facility, newest first.
type Store interface {
	Push(ctx context.Context, alert models.GrowthAlert) error
	Recent(ctx context.Context, facilityID int64, limit int) ([]models.GrowthAlert, error)
}

type RedisStore struct {
	client *redis.Client
}

// NewStore returns a store that keeps nothing when Redis is disabled.
func NewStore(client *redis.Client) Store {
	if client == nil {
		return NoopStore{}
	}
	return &RedisStore{client: client}
}

func facilityKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

func (s *RedisStore) Push(ctx context.Context, alert models.GrowthAlert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	key := facilityKey(alert.FacilityID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, raw)
		pipe.LTrim(ctx, key, 0, MaxPerFacility-1)
		return nil
	})
	return err
}

func (s *RedisStore) Recent(ctx context.Context, facilityID int64, limit int) ([]models.GrowthAlert, error) {
	if limit <= 0 || limit > MaxPerFacility {
		limit = MaxPerFacility
	}
	values, err := s.client.LRange(ctx, facilityKey(facilityID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.GrowthAlert, 0, len(values))
	for _, value := range values {
		var alert models.GrowthAlert
		if err := json.Unmarshal([]byte(value), &alert); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		out = append(out, alert)
	}
	return out, nil
}

type NoopStore struct{}

func (NoopStore) Push(context.Context, models.GrowthAlert) error { return nil }

func (NoopStore) Recent(context.Context, int64, int) ([]models.GrowthAlert, error) {
	return []models.GrowthAlert{}, nil
}
