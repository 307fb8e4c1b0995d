package domain

import (
	"context"
	"time"

	"gymslot/internal/models"
)

// Repository is the authoritative store for slots, bookings, trainers and
// users. Book/cancel transitions are serialized per slot by the
// implementation (a transaction with a status-guarded update).
type Repository interface {
	CreateSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	GetTrainerSlots(ctx context.Context, trainerID int64, date time.Time) ([]*models.Slot, error)
	GetSlotsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Slot, error)
	DeleteSlot(ctx context.Context, id int64) error

	BookSlotWithLock(ctx context.Context, booking *models.Booking) error
	CancelBookingWithLock(ctx context.Context, bookingID int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetActiveBookingBySlot(ctx context.Context, slotID int64) (*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)

	UpsertTrainer(ctx context.Context, trainer *models.Trainer) error
	GetTrainerByID(ctx context.Context, id int64) (*models.Trainer, error)
	GetActiveTrainers(ctx context.Context) ([]*models.Trainer, error)

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserActivity(ctx context.Context, id int64) error
}

// ScheduleCache holds the derived day-schedule read model. It is a cache,
// never authoritative: every book/cancel/publish invalidates the affected
// day.
type ScheduleCache interface {
	GetDaySchedule(ctx context.Context, trainerID int64, date string) (*models.DaySchedule, error)
	SetDaySchedule(ctx context.Context, schedule *models.DaySchedule) error
	InvalidateDay(ctx context.Context, trainerID int64, date string) error
	CheckRateLimit(ctx context.Context, clientKey string, limit int, window time.Duration) (bool, error)
}

// EventPublisher fans booking/slot events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncWorker queues booking rows for the external sheet ledger.
type SyncWorker interface {
	EnqueueBooking(ctx context.Context, taskType string, booking *models.Booking) error
}

// BookingService is the state machine around slot transitions.
type BookingService interface {
	Book(ctx context.Context, slotID, userID int64) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, requestingUserID int64) error
}

// ScheduleService is the read side plus trainer-facing slot administration.
type ScheduleService interface {
	ListTrainerSlots(ctx context.Context, trainerID int64, date time.Time) ([]models.SlotView, error)
	ListUserBookings(ctx context.Context, userID int64) ([]models.BookingDetail, error)
	PublishSlot(ctx context.Context, trainerID int64, date time.Time, startTime, endTime string) (*models.Slot, error)
	DeleteSlot(ctx context.Context, slotID int64) error
}
