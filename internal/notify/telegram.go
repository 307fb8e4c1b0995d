package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gymslot/internal/events"
	"gymslot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the narrow slice of the Telegram bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BookingSource provides the reads the reminder loop needs.
type BookingSource interface {
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	GetTrainerByID(ctx context.Context, id int64) (*models.Trainer, error)
}

// StaffNotifier pushes booking activity to the staff chat and reminds
// members about next-day sessions. Notification failures are logged and
// dropped; they never affect the booking flow.
type StaffNotifier struct {
	sender       Sender
	repo         BookingSource
	staffChatID  int64
	reminderHour int
	loc          *time.Location
	logger       *zerolog.Logger
}

func NewStaffNotifier(sender Sender, repo BookingSource, staffChatID int64, reminderHour int, loc *time.Location, logger *zerolog.Logger) *StaffNotifier {
	if reminderHour <= 0 || reminderHour > 23 {
		reminderHour = models.ReminderHour
	}
	if loc == nil {
		loc = time.Local
	}
	return &StaffNotifier{
		sender:       sender,
		repo:         repo,
		staffChatID:  staffChatID,
		reminderHour: reminderHour,
		loc:          loc,
		logger:       logger,
	}
}

// Subscribe attaches the notifier to booking and slot events.
func (n *StaffNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, n.handleBookingEvent)
	bus.Subscribe(events.EventBookingCancelled, n.handleBookingEvent)
	bus.Subscribe(events.EventSlotPublished, n.handleSlotEvent)
	bus.Subscribe(events.EventSlotDeleted, n.handleSlotEvent)
}

func (n *StaffNotifier) handleBookingEvent(event *events.Event) error {
	if n.sender == nil || n.staffChatID == 0 {
		return nil
	}

	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode booking event")
		return err
	}

	text := n.formatBookingMessage(event.Type, payload)
	msg := tgbotapi.NewMessage(n.staffChatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", n.staffChatID).Msg("staff notification send")
		return err
	}
	return nil
}

func (n *StaffNotifier) handleSlotEvent(event *events.Event) error {
	if n.sender == nil || n.staffChatID == 0 {
		return nil
	}

	var payload events.SlotEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode slot event")
		return err
	}

	var text string
	switch event.Type {
	case events.EventSlotPublished:
		text = fmt.Sprintf("New slot: trainer %d on %s, %s-%s", payload.TrainerID, payload.Date, payload.StartTime, payload.EndTime)
	case events.EventSlotDeleted:
		text = fmt.Sprintf("Slot withdrawn: trainer %d on %s, %s-%s", payload.TrainerID, payload.Date, payload.StartTime, payload.EndTime)
	default:
		return nil
	}

	msg := tgbotapi.NewMessage(n.staffChatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", n.staffChatID).Msg("staff notification send")
		return err
	}
	return nil
}

func (n *StaffNotifier) formatBookingMessage(eventType string, p events.BookingEventPayload) string {
	switch eventType {
	case events.EventBookingCreated:
		return fmt.Sprintf("Booking #%d: user %d booked trainer %d on %s, %s-%s",
			p.BookingID, p.UserID, p.TrainerID, p.Date, p.StartTime, p.EndTime)
	case events.EventBookingCancelled:
		return fmt.Sprintf("Booking #%d cancelled: user %d, trainer %d, %s %s-%s",
			p.BookingID, p.UserID, p.TrainerID, p.Date, p.StartTime, p.EndTime)
	default:
		return fmt.Sprintf("Booking #%d: %s", p.BookingID, eventType)
	}
}

// StartReminders schedules daily reminders for next-day sessions.
func (n *StaffNotifier) StartReminders(ctx context.Context) {
	if n == nil || n.sender == nil {
		return
	}

	go func() {
		// First wait until next reminder time local time, then tick every 24h.
		wait := n.timeUntilNextHour(n.reminderHour)
		timer := time.NewTimer(wait)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				n.sendTomorrowReminders(ctx)
				timer.Reset(24 * time.Hour)
			}
		}
	}()
}

func (n *StaffNotifier) sendTomorrowReminders(ctx context.Context) {
	now := time.Now().In(n.loc)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.loc).AddDate(0, 0, 1)

	bookings, err := n.repo.GetBookingsByDateRange(ctx, tomorrow, tomorrow)
	if err != nil {
		n.logger.Error().Err(err).Time("date", tomorrow).Msg("reminder: get bookings error")
		return
	}

	for _, booking := range bookings {
		if booking.Status != models.BookingActive {
			continue
		}

		user, err := n.repo.GetUserByID(ctx, booking.UserID)
		if err != nil {
			n.logger.Error().Err(err).Int64("user_id", booking.UserID).Msg("reminder: load user error")
			continue
		}
		if user.TelegramID == 0 {
			continue
		}

		slot, err := n.repo.GetSlot(ctx, booking.SlotID)
		if err != nil {
			n.logger.Error().Err(err).Int64("slot_id", booking.SlotID).Msg("reminder: load slot error")
			continue
		}

		trainerName := fmt.Sprintf("trainer %d", slot.TrainerID)
		if trainer, err := n.repo.GetTrainerByID(ctx, slot.TrainerID); err == nil {
			trainerName = trainer.FirstName + " " + trainer.LastName
		}

		text := fmt.Sprintf("Reminder: tomorrow you train with %s at %s", trainerName, slot.StartTime)
		msg := tgbotapi.NewMessage(user.TelegramID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("reminder: send error")
		}
	}
}

func (n *StaffNotifier) timeUntilNextHour(hour int) time.Duration {
	now := time.Now().In(n.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, n.loc)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
