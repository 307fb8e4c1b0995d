package service

import (
	"context"
	"io"
	"testing"
	"time"

	"gymslot/internal/database"
	"gymslot/internal/models"
	"gymslot/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestBookingService(t *testing.T, repo *mockRepo, cache *mockCache, bus *mockEventBus, worker *mockWorker) *BookingService {
	t.Helper()
	normalizer, err := schedule.NewNormalizer(models.DefaultTimezone)
	require.NoError(t, err)
	logger := zerolog.New(io.Discard)
	return NewBookingService(repo, cache, normalizer, bus, worker, 7, &logger)
}

func futureSlot(id int64) *models.Slot {
	date := time.Now().AddDate(0, 0, 2)
	return &models.Slot{
		ID:        id,
		TrainerID: 1,
		Date:      time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "11:00",
		Status:    models.SlotAvailable,
		Version:   1,
	}
}

func TestBookingServiceBook(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		bus := new(mockEventBus)
		worker := new(mockWorker)
		svc := newTestBookingService(t, repo, cache, bus, worker)

		slot := futureSlot(5)
		repo.On("GetUserByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()
		repo.On("BookSlotWithLock", ctx, mock.AnythingOfType("*models.Booking")).Return(nil).Once()
		repo.On("UpdateUserActivity", ctx, int64(42)).Return(nil).Once()
		cache.On("InvalidateDay", ctx, int64(1), slot.Date.Format("2006-01-02")).Return(nil).Once()
		bus.On("PublishJSON", "booking_created", mock.Anything).Return(nil).Once()
		worker.On("EnqueueBooking", ctx, "upsert", mock.AnythingOfType("*models.Booking")).Return(nil).Once()

		booking, err := svc.Book(ctx, 5, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(5), booking.SlotID)
		assert.Equal(t, int64(42), booking.UserID)
		assert.NotEmpty(t, booking.Reference)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
		bus.AssertExpectations(t)
		worker.AssertExpectations(t)
	})

	t.Run("slot already booked", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		slot := futureSlot(5)
		slot.Status = models.SlotBooked
		repo.On("GetUserByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()

		_, err := svc.Book(ctx, 5, 42)
		assert.ErrorIs(t, err, database.ErrSlotBooked)
		repo.AssertExpectations(t)
	})

	t.Run("slot expired", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		slot := futureSlot(5)
		date := time.Now().AddDate(0, 0, -1)
		slot.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		repo.On("GetUserByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()

		_, err := svc.Book(ctx, 5, 42)
		assert.ErrorIs(t, err, database.ErrSlotExpired)
		repo.AssertExpectations(t)
	})

	t.Run("beyond booking window", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		slot := futureSlot(5)
		date := time.Now().AddDate(0, 0, 14)
		slot.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		repo.On("GetUserByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()

		_, err := svc.Book(ctx, 5, 42)
		assert.ErrorIs(t, err, database.ErrDateTooFar)
		repo.AssertExpectations(t)
	})

	t.Run("lost the race", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		slot := futureSlot(5)
		repo.On("GetUserByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()
		repo.On("BookSlotWithLock", ctx, mock.AnythingOfType("*models.Booking")).Return(database.ErrSlotBooked).Once()

		_, err := svc.Book(ctx, 5, 42)
		assert.ErrorIs(t, err, database.ErrSlotBooked)
		repo.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		repo.On("GetUserByID", ctx, int64(99)).Return(nil, database.ErrUserNotFound).Once()

		_, err := svc.Book(ctx, 5, 99)
		assert.ErrorIs(t, err, database.ErrUserNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("unknown slot", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		repo.On("GetUserByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil).Once()
		repo.On("GetSlot", ctx, int64(77)).Return(nil, database.ErrSlotNotFound).Once()

		_, err := svc.Book(ctx, 77, 42)
		assert.ErrorIs(t, err, database.ErrSlotNotFound)
		repo.AssertExpectations(t)
	})
}

func TestBookingServiceCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		bus := new(mockEventBus)
		worker := new(mockWorker)
		svc := newTestBookingService(t, repo, cache, bus, worker)

		slot := futureSlot(5)
		slot.Status = models.SlotBooked
		booking := &models.Booking{ID: 9, SlotID: 5, UserID: 42, Status: models.BookingActive}
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()
		repo.On("CancelBookingWithLock", ctx, int64(9)).Return(nil).Once()
		cache.On("InvalidateDay", ctx, int64(1), slot.Date.Format("2006-01-02")).Return(nil).Once()
		bus.On("PublishJSON", "booking_cancelled", mock.Anything).Return(nil).Once()
		worker.On("EnqueueBooking", ctx, "update_status", booking).Return(nil).Once()

		err := svc.Cancel(ctx, 9, 42)
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, booking.Status)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
		bus.AssertExpectations(t)
		worker.AssertExpectations(t)
	})

	t.Run("not the owner", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		booking := &models.Booking{ID: 9, SlotID: 5, UserID: 42, Status: models.BookingActive}
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil).Once()

		err := svc.Cancel(ctx, 9, 43)
		assert.ErrorIs(t, err, database.ErrNotOwner)
		repo.AssertExpectations(t)
	})

	t.Run("already cancelled", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		booking := &models.Booking{ID: 9, SlotID: 5, UserID: 42, Status: models.BookingCancelled}
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil).Once()

		err := svc.Cancel(ctx, 9, 42)
		assert.ErrorIs(t, err, database.ErrAlreadyCancelled)
		repo.AssertExpectations(t)
	})

	t.Run("session in progress", func(t *testing.T) {
		// A started session can still be cancelled until its end time.
		repo := new(mockRepo)
		cache := new(mockCache)
		bus := new(mockEventBus)
		worker := new(mockWorker)
		svc := newTestBookingService(t, repo, cache, bus, worker)

		slot := futureSlot(5)
		slot.StartTime = time.Now().Add(-time.Hour).Format(time.RFC3339)
		slot.EndTime = time.Now().Add(time.Hour).Format(time.RFC3339)
		slot.Status = models.SlotBooked
		booking := &models.Booking{ID: 9, SlotID: 5, UserID: 42, Status: models.BookingActive}
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()
		repo.On("CancelBookingWithLock", ctx, int64(9)).Return(nil).Once()
		cache.On("InvalidateDay", ctx, int64(1), slot.Date.Format("2006-01-02")).Return(nil).Once()
		bus.On("PublishJSON", "booking_cancelled", mock.Anything).Return(nil).Once()
		worker.On("EnqueueBooking", ctx, "update_status", booking).Return(nil).Once()

		err := svc.Cancel(ctx, 9, 42)
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, booking.Status)
		repo.AssertExpectations(t)
	})

	t.Run("session already ended", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newTestBookingService(t, repo, new(mockCache), new(mockEventBus), new(mockWorker))

		slot := futureSlot(5)
		date := time.Now().AddDate(0, 0, -1)
		slot.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		slot.Status = models.SlotBooked
		booking := &models.Booking{ID: 9, SlotID: 5, UserID: 42, Status: models.BookingActive}
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil).Once()
		repo.On("GetSlot", ctx, int64(5)).Return(slot, nil).Once()

		err := svc.Cancel(ctx, 9, 42)
		assert.ErrorIs(t, err, database.ErrSlotExpired)
		repo.AssertExpectations(t)
	})
}
