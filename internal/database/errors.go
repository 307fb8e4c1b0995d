package database

import "errors"

// Typed outcomes of booking transitions. These are expected, recoverable
// results; the caller re-fetches and re-renders, it does not retry blindly.
var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrSlotBooked       = errors.New("slot already booked")
	ErrSlotExpired      = errors.New("slot time has passed")
	ErrNotOwner         = errors.New("booking belongs to another user")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrSlotHasBooking   = errors.New("slot has an active booking")
	ErrTrainerNotFound  = errors.New("trainer not found")
	ErrUserNotFound     = errors.New("user not found")

	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Schedule validation outcomes shared by the service layer.
var (
	ErrPastDate     = errors.New("slot time is in the past")
	ErrDateTooFar   = errors.New("slot time is beyond the booking window")
	ErrInvalidRange = errors.New("slot end time must be after start time")
	ErrSlotOverlap  = errors.New("slot overlaps an existing slot")
)
