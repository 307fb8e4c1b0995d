package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymslot/internal/database"
	"gymslot/internal/domain"
	"gymslot/internal/events"
	"gymslot/internal/metrics"
	"gymslot/internal/models"
	"gymslot/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService drives slot state transitions. It validates against
// freshly read state, then delegates the actual transition to the
// repository's single-transaction compare-and-set, so a stale check can
// lose the race but can never corrupt state.
type BookingService struct {
	repo           domain.Repository
	cache          domain.ScheduleCache
	normalizer     *schedule.Normalizer
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	maxAdvanceDays int
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.Repository, cache domain.ScheduleCache, normalizer *schedule.Normalizer, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, maxAdvanceDays int, logger *zerolog.Logger) *BookingService {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return &BookingService{
		repo:           repo,
		cache:          cache,
		normalizer:     normalizer,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

// Book claims a slot for a user. Exactly one of N concurrent callers for
// the same slot succeeds; the rest get ErrSlotBooked.
func (s *BookingService) Book(ctx context.Context, slotID, userID int64) (*models.Booking, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	startsAt, err := s.normalizer.Normalize(slot.StartTime, slot.Date)
	if err != nil {
		return nil, fmt.Errorf("normalize slot %d start: %w", slot.ID, err)
	}

	switch s.normalizer.Classify(slot.Status, startsAt) {
	case models.SlotBooked:
		metrics.IncBooking("book", "conflict")
		metrics.IncConflict()
		return nil, database.ErrSlotBooked
	case models.SlotExpired:
		metrics.IncBooking("book", "expired")
		return nil, database.ErrSlotExpired
	}

	if startsAt.After(s.normalizer.Now().AddDate(0, 0, s.maxAdvanceDays)) {
		return nil, database.ErrDateTooFar
	}

	booking := &models.Booking{
		Reference: uuid.NewString(),
		SlotID:    slot.ID,
		UserID:    userID,
	}
	if err := s.repo.BookSlotWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotBooked) {
			// Lost the race between the check above and the transition.
			metrics.IncBooking("book", "conflict")
			metrics.IncConflict()
		}
		return nil, err
	}
	metrics.IncBooking("book", "ok")

	if err := s.repo.UpdateUserActivity(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("update user activity")
	}

	s.invalidateDay(ctx, slot.TrainerID, slot.Date)
	s.publishEvent(events.EventBookingCreated, booking, slot)
	s.enqueueSync(ctx, "upsert", booking)

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("reference", booking.Reference).
		Int64("slot_id", slot.ID).
		Int64("user_id", userID).
		Msg("booking created")

	return booking, nil
}

// Cancel releases a booking and returns its slot to Available. Only the
// booking's owner may cancel, and only before the session ends. A session
// already in progress can still be cancelled.
func (s *BookingService) Cancel(ctx context.Context, bookingID, requestingUserID int64) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != requestingUserID {
		return database.ErrNotOwner
	}
	if booking.Status != models.BookingActive {
		return database.ErrAlreadyCancelled
	}

	slot, err := s.repo.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return err
	}
	endsAt, err := s.normalizer.Normalize(slot.EndTime, slot.Date)
	if err != nil {
		return fmt.Errorf("normalize slot %d end: %w", slot.ID, err)
	}
	if s.normalizer.IsPast(endsAt) {
		metrics.IncBooking("cancel", "expired")
		return database.ErrSlotExpired
	}

	if err := s.repo.CancelBookingWithLock(ctx, bookingID); err != nil {
		return err
	}
	metrics.IncBooking("cancel", "ok")

	booking.Status = models.BookingCancelled
	s.invalidateDay(ctx, slot.TrainerID, slot.Date)
	s.publishEvent(events.EventBookingCancelled, booking, slot)
	s.enqueueSync(ctx, "update_status", booking)

	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("slot_id", slot.ID).
		Int64("user_id", requestingUserID).
		Msg("booking cancelled")

	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) invalidateDay(ctx context.Context, trainerID int64, date time.Time) {
	if s.cache == nil {
		return
	}
	day := date.Format("2006-01-02")
	if err := s.cache.InvalidateDay(ctx, trainerID, day); err != nil {
		s.logger.Warn().Err(err).Int64("trainer_id", trainerID).Str("date", day).Msg("invalidate day schedule")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, slot *models.Slot) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		Reference: booking.Reference,
		SlotID:    slot.ID,
		TrainerID: slot.TrainerID,
		UserID:    booking.UserID,
		Status:    booking.Status,
		Date:      slot.Date.Format("2006-01-02"),
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		At:        time.Now(),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, booking *models.Booking) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueBooking(ctx, taskType, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
