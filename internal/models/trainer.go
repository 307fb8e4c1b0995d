package models

import "time"

// Trainer is loaded from the roster file at startup and mirrored
// into the database so slots always reference a known trainer.
type Trainer struct {
	ID        int64     `yaml:"id" json:"id"`
	FirstName string    `yaml:"first_name" json:"first_name"`
	LastName  string    `yaml:"last_name" json:"last_name"`
	Skill     string    `yaml:"skill" json:"skill"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}
