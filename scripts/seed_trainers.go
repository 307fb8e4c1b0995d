package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gymslot/internal/database"
	"gymslot/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type RosterConfig struct {
	Trainers []models.Trainer `yaml:"trainers"`
}

// Seeds the trainers table from a roster file without starting the API.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		rosterPath = flag.String("trainers", "configs/trainers.yaml", "path to trainers.yaml")
		dbPath     = flag.String("db", "./data/gymslot.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*rosterPath)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	var cfg RosterConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse roster: %w", err)
	}
	if len(cfg.Trainers) == 0 {
		return fmt.Errorf("no trainers in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count := 0
	for i := range cfg.Trainers {
		trainer := &cfg.Trainers[i]
		if trainer.ID == 0 || trainer.FirstName == "" {
			continue
		}
		if err = db.UpsertTrainer(ctx, trainer); err != nil {
			return fmt.Errorf("upsert trainer %d: %w", trainer.ID, err)
		}
		count++
	}

	fmt.Printf("done: trainers=%d\n", count)
	return nil
}
