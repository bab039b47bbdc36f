package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/feelincoding/openmat/config"
	"github.com/feelincoding/openmat/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds per-facility upcoming-slot listings. Occupancy reads
// never go through here: listings are schedule data only and are
// invalidated whenever a slot is created or retired.
type RedisCache struct {
	client      *redis.Client
	scheduleTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, scheduleTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:      redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		scheduleTTL: scheduleTTL,
	}
}

func (c *RedisCache) GetUpcomingSlots(ctx context.Context, facilityID int64) ([]domain.Slot, error) {
	data, err := c.client.Get(ctx, scheduleKey(facilityID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var slots []domain.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *RedisCache) SetUpcomingSlots(ctx context.Context, facilityID int64, slots []domain.Slot) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, scheduleKey(facilityID), payload, c.scheduleTTL).Err()
}

func (c *RedisCache) InvalidateUpcomingSlots(ctx context.Context, facilityID int64) error {
	return c.client.Del(ctx, scheduleKey(facilityID)).Err()
}

func scheduleKey(facilityID int64) string {
	return fmt.Sprintf("cache:schedule:facility:%d", facilityID)
}
