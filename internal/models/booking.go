package models

import "time"

type Booking struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	SlotID    int64     `json:"slot_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"` // active, cancelled
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// BookingDetail pairs a booking with the slot view it occupies,
// for member history screens.
type BookingDetail struct {
	Booking Booking  `json:"booking"`
	Slot    SlotView `json:"slot"`
}
