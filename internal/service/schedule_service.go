package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymslot/internal/database"
	"gymslot/internal/domain"
	"gymslot/internal/events"
	"gymslot/internal/models"
	"gymslot/internal/schedule"

	"github.com/rs/zerolog"
)

// ScheduleService serves day schedules and trainer slot administration.
// Reads go through the day-schedule cache; the database stays the single
// source of truth and every write invalidates the affected day.
type ScheduleService struct {
	repo           domain.Repository
	cache          domain.ScheduleCache
	normalizer     *schedule.Normalizer
	eventBus       domain.EventPublisher
	maxAdvanceDays int
	logger         *zerolog.Logger
}

func NewScheduleService(repo domain.Repository, cache domain.ScheduleCache, normalizer *schedule.Normalizer, eventBus domain.EventPublisher, maxAdvanceDays int, logger *zerolog.Logger) *ScheduleService {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return &ScheduleService{
		repo:           repo,
		cache:          cache,
		normalizer:     normalizer,
		eventBus:       eventBus,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

// ListTrainerSlots returns one trainer's slots for a date with effective
// statuses attached. Cached schedules are re-classified against the
// current clock, so a cached Available slot still reads Expired once its
// start passes.
func (s *ScheduleService) ListTrainerSlots(ctx context.Context, trainerID int64, date time.Time) ([]models.SlotView, error) {
	if _, err := s.repo.GetTrainerByID(ctx, trainerID); err != nil {
		return nil, err
	}

	day := date.Format("2006-01-02")
	if s.cache != nil {
		cached, err := s.cache.GetDaySchedule(ctx, trainerID, day)
		if err != nil {
			s.logger.Warn().Err(err).Int64("trainer_id", trainerID).Str("date", day).Msg("day schedule cache read")
		} else if cached != nil {
			return s.reclassify(cached.Slots), nil
		}
	}

	slots, err := s.repo.GetTrainerSlots(ctx, trainerID, date)
	if err != nil {
		return nil, err
	}

	views := make([]models.SlotView, 0, len(slots))
	for _, slot := range slots {
		view, err := s.normalizer.View(*slot)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot.ID, err)
		}
		if slot.Status == models.SlotBooked {
			booking, err := s.repo.GetActiveBookingBySlot(ctx, slot.ID)
			if err == nil {
				view.BookingID = booking.ID
			} else if !errors.Is(err, database.ErrBookingNotFound) {
				return nil, err
			}
		}
		views = append(views, view)
	}

	if s.cache != nil {
		sched := &models.DaySchedule{
			TrainerID:   trainerID,
			Date:        day,
			Slots:       views,
			GeneratedAt: time.Now(),
		}
		if err := s.cache.SetDaySchedule(ctx, sched); err != nil {
			s.logger.Warn().Err(err).Int64("trainer_id", trainerID).Str("date", day).Msg("day schedule cache write")
		}
	}

	return views, nil
}

// ListUserBookings returns a member's booking history, newest first, with
// each booking's slot resolved. Bookings whose slot was since removed are
// skipped rather than failing the whole listing.
func (s *ScheduleService) ListUserBookings(ctx context.Context, userID int64) ([]models.BookingDetail, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	bookings, err := s.repo.GetUserBookings(ctx, userID)
	if err != nil {
		return nil, err
	}

	details := make([]models.BookingDetail, 0, len(bookings))
	for _, booking := range bookings {
		slot, err := s.repo.GetSlot(ctx, booking.SlotID)
		if errors.Is(err, database.ErrSlotNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		view, err := s.normalizer.View(*slot)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot.ID, err)
		}
		details = append(details, models.BookingDetail{Booking: *booking, Slot: view})
	}
	return details, nil
}

// PublishSlot creates a new Available slot after validating its time
// window against the clock, the advance-booking horizon and the trainer's
// existing slots on that date.
func (s *ScheduleService) PublishSlot(ctx context.Context, trainerID int64, date time.Time, startTime, endTime string) (*models.Slot, error) {
	trainer, err := s.repo.GetTrainerByID(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	if !trainer.IsActive {
		return nil, database.ErrTrainerNotFound
	}

	startsAt, err := s.normalizer.Normalize(startTime, date)
	if err != nil {
		return nil, err
	}
	endsAt, err := s.normalizer.Normalize(endTime, date)
	if err != nil {
		return nil, err
	}
	if !endsAt.After(startsAt) {
		return nil, database.ErrInvalidRange
	}
	if s.normalizer.IsPast(startsAt) {
		return nil, database.ErrPastDate
	}
	if startsAt.After(s.normalizer.Now().AddDate(0, 0, s.maxAdvanceDays)) {
		return nil, database.ErrDateTooFar
	}

	existing, err := s.repo.GetTrainerSlots(ctx, trainerID, date)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		otherStart, err := s.normalizer.Normalize(other.StartTime, other.Date)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", other.ID, err)
		}
		otherEnd, err := s.normalizer.Normalize(other.EndTime, other.Date)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", other.ID, err)
		}
		if startsAt.Before(otherEnd) && endsAt.After(otherStart) {
			return nil, database.ErrSlotOverlap
		}
	}

	slot := &models.Slot{
		TrainerID: trainerID,
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	s.invalidateDay(ctx, trainerID, date)
	s.publishSlotEvent(events.EventSlotPublished, slot)

	s.logger.Info().
		Int64("slot_id", slot.ID).
		Int64("trainer_id", trainerID).
		Str("date", date.Format("2006-01-02")).
		Str("start", startTime).
		Str("end", endTime).
		Msg("slot published")

	return slot, nil
}

// DeleteSlot withdraws an unsold slot. A slot with an active booking is
// refused; the booking must be cancelled first.
func (s *ScheduleService) DeleteSlot(ctx context.Context, slotID int64) error {
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteSlot(ctx, slotID); err != nil {
		return err
	}

	s.invalidateDay(ctx, slot.TrainerID, slot.Date)
	s.publishSlotEvent(events.EventSlotDeleted, slot)

	s.logger.Info().Int64("slot_id", slotID).Int64("trainer_id", slot.TrainerID).Msg("slot deleted")
	return nil
}

// reclassify recomputes effective statuses on cached views; the stored
// status and instants are reused, only the clock comparison is redone.
func (s *ScheduleService) reclassify(views []models.SlotView) []models.SlotView {
	out := make([]models.SlotView, len(views))
	for i, view := range views {
		view.Effective = s.normalizer.Classify(view.Slot.Status, view.StartsAt)
		out[i] = view
	}
	return out
}

func (s *ScheduleService) invalidateDay(ctx context.Context, trainerID int64, date time.Time) {
	if s.cache == nil {
		return
	}
	day := date.Format("2006-01-02")
	if err := s.cache.InvalidateDay(ctx, trainerID, day); err != nil {
		s.logger.Warn().Err(err).Int64("trainer_id", trainerID).Str("date", day).Msg("invalidate day schedule")
	}
}

func (s *ScheduleService) publishSlotEvent(eventType string, slot *models.Slot) {
	if s.eventBus == nil {
		return
	}
	payload := events.SlotEventPayload{
		SlotID:    slot.ID,
		TrainerID: slot.TrainerID,
		Date:      slot.Date.Format("2006-01-02"),
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("slot_id", slot.ID).Msg("publish event error")
	}
}
