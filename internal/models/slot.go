package models

import "time"

// Slot is one trainer-offered time window on a calendar date.
// StartTime/EndTime keep the raw values exactly as the schedule source
// supplied them ("09:00", "2024-03-01T09:00:00+07:00", ...); parsing into
// instants is the schedule package's job.
type Slot struct {
	ID        int64     `json:"id"`
	TrainerID int64     `json:"trainer_id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// SlotView is a slot enriched with normalized instants and the
// time-derived effective status. Never persisted.
type SlotView struct {
	Slot      Slot      `json:"slot"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Effective string    `json:"effective_status"`
	BookingID int64     `json:"booking_id,omitempty"`
}

// DaySchedule is the cacheable read model for one trainer on one date.
type DaySchedule struct {
	TrainerID   int64      `json:"trainer_id"`
	Date        string     `json:"date"`
	Slots       []SlotView `json:"slots"`
	GeneratedAt time.Time  `json:"generated_at"`
}
