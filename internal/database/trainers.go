package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymslot/internal/models"
)

// UpsertTrainer mirrors a roster entry into the database. Roster IDs are
// stable, so conflicts update in place.
func (db *DB) UpsertTrainer(ctx context.Context, trainer *models.Trainer) error {
	query := `INSERT INTO trainers (id, first_name, last_name, skill, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  first_name = excluded.first_name,
                  last_name = excluded.last_name,
                  skill = excluded.skill,
                  is_active = excluded.is_active,
                  updated_at = excluded.updated_at`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		trainer.ID,
		trainer.FirstName,
		trainer.LastName,
		trainer.Skill,
		trainer.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert trainer: %w", err)
	}
	return nil
}

func (db *DB) GetTrainerByID(ctx context.Context, id int64) (*models.Trainer, error) {
	query := `SELECT id, first_name, last_name, skill, is_active, created_at, updated_at
              FROM trainers WHERE id = ?`
	t := &models.Trainer{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.FirstName, &t.LastName, &t.Skill, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trainer: %w", err)
	}
	return t, nil
}

func (db *DB) GetActiveTrainers(ctx context.Context) ([]*models.Trainer, error) {
	query := `SELECT id, first_name, last_name, skill, is_active, created_at, updated_at
              FROM trainers WHERE is_active = 1 ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active trainers: %w", err)
	}
	defer rows.Close()

	var trainers []*models.Trainer
	for rows.Next() {
		t := &models.Trainer{}
		err := rows.Scan(&t.ID, &t.FirstName, &t.LastName, &t.Skill, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trainer: %w", err)
		}
		trainers = append(trainers, t)
	}
	return trainers, rows.Err()
}
