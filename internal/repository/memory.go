package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gymslot/internal/models"
)

// MemoryScheduleCache is the in-process fallback used when Redis is down
// and in tests. Entries expire lazily on read.
type MemoryScheduleCache struct {
	schedules  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

type scheduleEntry struct {
	schedule  *models.DaySchedule
	expiresAt time.Time
}

func NewMemoryScheduleCache(ttl time.Duration) *MemoryScheduleCache {
	return &MemoryScheduleCache{
		ttl: ttl,
	}
}

func memoryKey(trainerID int64, date string) string {
	return fmt.Sprintf("%d:%s", trainerID, date)
}

func (r *MemoryScheduleCache) GetDaySchedule(ctx context.Context, trainerID int64, date string) (*models.DaySchedule, error) {
	key := memoryKey(trainerID, date)
	val, ok := r.schedules.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*scheduleEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.schedules.Delete(key)
		return nil, nil
	}
	return entry.schedule, nil
}

func (r *MemoryScheduleCache) SetDaySchedule(ctx context.Context, schedule *models.DaySchedule) error {
	key := memoryKey(schedule.TrainerID, schedule.Date)
	r.schedules.Store(key, &scheduleEntry{
		schedule:  schedule,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryScheduleCache) InvalidateDay(ctx context.Context, trainerID int64, date string) error {
	r.schedules.Delete(memoryKey(trainerID, date))
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryScheduleCache) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(clientKey)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(clientKey, entry)
	return entry.count <= limit, nil
}
