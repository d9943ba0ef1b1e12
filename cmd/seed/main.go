// Command seed loads shows and their seat labels from a YAML fixture.
//
//	seed --file seed.yaml
//
// Shows that already exist (same title and start time) are skipped, as are
// their seats, so the fixture can be applied repeatedly.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// Fixture is the seed file layout.
type Fixture struct {
	Shows []ShowFixture `yaml:"shows"`
}

// ShowFixture describes one show and its seats.
type ShowFixture struct {
	Title    string    `yaml:"title"`
	Venue    string    `yaml:"venue"`
	StartsAt time.Time `yaml:"starts_at"`
	Seats    []string  `yaml:"seats"`
}

func main() {
	file := pflag.StringP("file", "f", "seed.yaml", "YAML fixture to load")
	envFiles := pflag.StringSlice("env-file", []string{".env"}, "dotenv files to load before reading the environment")
	pflag.Parse()

	config.LoadEnvFiles(*envFiles...)
	cfg := config.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	fx, err := loadFixture(*file)
	if err != nil {
		log.Error("read fixture", "file", *file, "err", err)
		os.Exit(1)
	}

	store, err := database.OpenStore(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.SQLitePath)
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := database.Migrate(ctx, store.DB, store.Dialect); err != nil {
		log.Error("migrate database", "err", err)
		os.Exit(1)
	}

	created, err := apply(ctx, service.NewSeatRegistry(store, log), fx)
	if err != nil {
		log.Error("seed", "err", err)
		os.Exit(1)
	}
	log.Info("seed complete", "shows_created", created, "shows_in_file", len(fx.Shows))
}

func loadFixture(path string) (Fixture, error) {
	var fx Fixture
	bs, err := os.ReadFile(path)
	if err != nil {
		return fx, err
	}
	if err := yaml.Unmarshal(bs, &fx); err != nil {
		return fx, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, s := range fx.Shows {
		if s.Title == "" || s.StartsAt.IsZero() {
			return fx, fmt.Errorf("shows[%d]: title and starts_at are required", i)
		}
	}
	return fx, nil
}

// apply creates every show in fx with its seats and returns how many shows
// were new.
func apply(ctx context.Context, reg *service.SeatRegistry, fx Fixture) (int, error) {
	created := 0
	for _, s := range fx.Shows {
		show, err := reg.CreateShow(ctx, service.NewShow{Title: s.Title, Venue: s.Venue, StartsAt: s.StartsAt})
		if errors.Is(err, service.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("show %q: %w", s.Title, err)
		}
		created++
		if len(s.Seats) == 0 {
			continue
		}
		if _, err := reg.RegisterSeats(ctx, show.ID, s.Seats); err != nil {
			return created, fmt.Errorf("seats for %q: %w", s.Title, err)
		}
	}
	return created, nil
}
