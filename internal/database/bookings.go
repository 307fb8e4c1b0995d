package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymslot/internal/models"
)

const bookingColumns = `id, reference, slot_id, user_id, status, version, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.Reference, &b.SlotID, &b.UserID,
		&b.Status, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BookSlotWithLock performs the Available->Booked transition and the
// booking insert as one transaction. The status-guarded UPDATE is the
// compare-and-set: of two racing callers exactly one flips the slot, the
// other observes zero affected rows and loses with ErrSlotBooked.
func (db *DB) BookSlotWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM slots WHERE id = ?`, booking.SlotID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("read slot status in tx: %w", err)
	}
	if status != models.SlotAvailable {
		return ErrSlotBooked
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND status = ?`,
		models.SlotBooked, now, booking.SlotID, models.SlotAvailable,
	)
	if err != nil {
		return fmt.Errorf("transition slot in tx: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotBooked
	}

	insert, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (reference, slot_id, user_id, status, version, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		booking.Reference, booking.SlotID, booking.UserID, models.BookingActive, 1, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking in tx: %w", err)
	}

	id, err := insert.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.Status = models.BookingActive
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return tx.Commit()
}

// CancelBookingWithLock flips an active booking to cancelled and returns
// the slot to Available, atomically. Ownership and expiry are checked by
// the service against freshly read state before this is called.
func (db *DB) CancelBookingWithLock(ctx context.Context, bookingID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var slotID int64
	err = tx.QueryRowContext(ctx, `SELECT slot_id FROM bookings WHERE id = ?`, bookingID).Scan(&slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("read booking in tx: %w", err)
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND status = ?`,
		models.BookingCancelled, now, bookingID, models.BookingActive,
	)
	if err != nil {
		return fmt.Errorf("cancel booking in tx: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyCancelled
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		models.SlotAvailable, now, slotID,
	); err != nil {
		return fmt.Errorf("release slot in tx: %w", err)
	}

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// GetActiveBookingBySlot returns the booking currently occupying a slot,
// or ErrBookingNotFound when the slot is free.
func (db *DB) GetActiveBookingBySlot(ctx context.Context, slotID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE slot_id = ? AND status = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, slotID, models.BookingActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active booking by slot: %w", err)
	}
	return booking, nil
}

func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get user bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT b.id, b.reference, b.slot_id, b.user_id, b.status, b.version, b.created_at, b.updated_at
              FROM bookings b
              JOIN slots s ON s.id = b.slot_id
              WHERE s.date >= ? AND s.date <= ?
              ORDER BY s.date ASC, s.start_time ASC`
	rows, err := db.QueryContext(ctx, query, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
