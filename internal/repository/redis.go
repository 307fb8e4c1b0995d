package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gymslot/internal/config"
	"gymslot/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisScheduleCache keeps rendered day schedules in Redis. The TTL is a
// safety net; writes invalidate the affected day explicitly.
type RedisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	client := redis.NewClient(options)

	return client
}

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration) *RedisScheduleCache {
	return &RedisScheduleCache{
		client: client,
		ttl:    ttl,
	}
}

func dayKey(trainerID int64, date string) string {
	return fmt.Sprintf("day_schedule:%d:%s", trainerID, date)
}

func (r *RedisScheduleCache) GetDaySchedule(ctx context.Context, trainerID int64, date string) (*models.DaySchedule, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, dayKey(trainerID, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day schedule from redis: %w", err)
	}

	var schedule models.DaySchedule
	if err := json.Unmarshal([]byte(val), &schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal day schedule: %w", err)
	}

	return &schedule, nil
}

func (r *RedisScheduleCache) SetDaySchedule(ctx context.Context, schedule *models.DaySchedule) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal day schedule: %w", err)
	}

	key := dayKey(schedule.TrainerID, schedule.Date)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set day schedule in redis: %w", err)
	}

	return nil
}

func (r *RedisScheduleCache) InvalidateDay(ctx context.Context, trainerID int64, date string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, dayKey(trainerID, date)).Err(); err != nil {
		return fmt.Errorf("failed to delete day schedule from redis: %w", err)
	}
	return nil
}

func (r *RedisScheduleCache) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%s", clientKey)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
