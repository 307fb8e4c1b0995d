package repository

import (
	"context"
	"sync/atomic"
	"time"

	"gymslot/internal/domain"
	"gymslot/internal/models"

	"github.com/rs/zerolog"
)

// FailoverScheduleCache prefers Redis and degrades to the in-memory cache
// when it fails, probing the primary again after a minute.
type FailoverScheduleCache struct {
	primary   domain.ScheduleCache
	fallback  domain.ScheduleCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverScheduleCache(primary, fallback domain.ScheduleCache, logger *zerolog.Logger) *FailoverScheduleCache {
	return &FailoverScheduleCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverScheduleCache) GetDaySchedule(ctx context.Context, trainerID int64, date string) (*models.DaySchedule, error) {
	if !r.isDown.Load() {
		schedule, err := r.primary.GetDaySchedule(ctx, trainerID, date)
		if err == nil {
			return schedule, nil
		}
		r.logger.Error().Err(err).Msg("Primary schedule cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		schedule, err := r.primary.GetDaySchedule(ctx, trainerID, date)
		if err == nil {
			r.isDown.Store(false)
			return schedule, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetDaySchedule(ctx, trainerID, date)
}

func (r *FailoverScheduleCache) SetDaySchedule(ctx context.Context, schedule *models.DaySchedule) error {
	if !r.isDown.Load() {
		err := r.primary.SetDaySchedule(ctx, schedule)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary schedule cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.SetDaySchedule(ctx, schedule)
}

func (r *FailoverScheduleCache) InvalidateDay(ctx context.Context, trainerID int64, date string) error {
	if !r.isDown.Load() {
		err := r.primary.InvalidateDay(ctx, trainerID, date)
		if err == nil {
			// Keep the fallback coherent; it may hold a stale copy from a
			// previous outage.
			_ = r.fallback.InvalidateDay(ctx, trainerID, date)
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary schedule cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.InvalidateDay(ctx, trainerID, date)
}

func (r *FailoverScheduleCache) CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, clientKey, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("Primary schedule cache failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.CheckRateLimit(ctx, clientKey, limit, window)
}
