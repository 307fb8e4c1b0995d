package schedule

import (
	"time"

	"gymslot/internal/models"
)

// Classify derives a slot's effective status from its stored status and
// normalized start instant. A booked slot stays Booked even after its end
// time passes, until the booking is cancelled; an unsold slot whose start
// has passed can no longer be booked and reads as Expired. The result is
// never persisted because it is a function of the clock, not of state.
func (n *Normalizer) Classify(storedStatus string, startsAt time.Time) string {
	switch {
	case storedStatus == models.SlotBooked:
		return models.SlotBooked
	case n.IsPast(startsAt):
		return models.SlotExpired
	default:
		return models.SlotAvailable
	}
}

// View normalizes a slot's raw times and attaches its effective status.
func (n *Normalizer) View(slot models.Slot) (models.SlotView, error) {
	startsAt, err := n.Normalize(slot.StartTime, slot.Date)
	if err != nil {
		return models.SlotView{}, err
	}
	endsAt, err := n.Normalize(slot.EndTime, slot.Date)
	if err != nil {
		return models.SlotView{}, err
	}

	return models.SlotView{
		Slot:      slot,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Effective: n.Classify(slot.Status, startsAt),
	}, nil
}
