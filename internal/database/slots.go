package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymslot/internal/models"
)

const slotColumns = `id, trainer_id, date, start_time, end_time, status, version, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*models.Slot, error) {
	s := &models.Slot{}
	var dateStr string
	err := row.Scan(
		&s.ID, &s.TrainerID, &dateStr, &s.StartTime, &s.EndTime,
		&s.Status, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Date, err = time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse slot date %q: %w", dateStr, err)
	}
	return s, nil
}

func (db *DB) CreateSlot(ctx context.Context, slot *models.Slot) error {
	query := `INSERT INTO slots (trainer_id, date, start_time, end_time, status, version, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		slot.TrainerID,
		slot.Date.Format(dateLayout),
		slot.StartTime,
		slot.EndTime,
		models.SlotAvailable,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	slot.ID = id
	slot.Status = models.SlotAvailable
	slot.Version = 1
	slot.CreatedAt = now
	slot.UpdatedAt = now
	return nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	slot, err := scanSlot(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (db *DB) GetTrainerSlots(ctx context.Context, trainerID int64, date time.Time) ([]*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE trainer_id = ? AND date = ? ORDER BY start_time ASC`
	rows, err := db.QueryContext(ctx, query, trainerID, date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get trainer slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// DeleteSlot removes a slot unless an active booking still references it.
// A booked slot must be cancelled first; deletion never orphans a booking.
func (db *DB) DeleteSlot(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE slot_id = ? AND status = ?`,
		id, models.BookingActive,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("check slot bookings: %w", err)
	}
	if active > 0 {
		return ErrSlotHasBooking
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}

	return tx.Commit()
}

func (db *DB) GetSlotsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE date >= ? AND date <= ? ORDER BY date ASC, start_time ASC`
	rows, err := db.QueryContext(ctx, query, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get slots by date range: %w", err)
	}
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
