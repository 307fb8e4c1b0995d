package models

// Stored slot statuses. "Expired" is never stored; it is derived from
// the clock on every read.
const (
	SlotAvailable = "Available"
	SlotBooked    = "Booked"
	SlotExpired   = "Expired"
)

const (
	BookingActive    = "active"
	BookingCancelled = "cancelled"
)

const (
	// DefaultTimezone is the gym's business zone; slot times are defined
	// in it regardless of where trainers or members are.
	DefaultTimezone = "Asia/Bangkok"

	// DefaultMaxAdvanceDays is how far ahead slots may be published or booked.
	DefaultMaxAdvanceDays = 7

	// DefaultScheduleCacheTTL is the day-schedule cache lifetime in seconds.
	DefaultScheduleCacheTTL = 60

	// DefaultRateLimitRPS and DefaultRateLimitBurst bound API clients.
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 5

	// WorkerQueueSize is the in-memory fallback queue length for the
	// sheets sync worker.
	WorkerQueueSize = 128

	// ReminderHour is the local hour at which next-day session reminders go out.
	ReminderHour = 9
)
