package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/equine-appointment-scheduling/internal/config"
	"github.com/hackgods/equine-appointment-scheduling/internal/db"
	"github.com/hackgods/equine-appointment-scheduling/internal/logging"
	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

// Seeded professionals are scattered around this point so that owners
// placed near them land inside their service areas.
const (
	centerLat = 46.6
	centerLng = 2.4
)

var consultationLengths = []int{30, 45, 60, 90}

func main() {
	logger := logging.New("dev", "info", "seed")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedProfessionals(ctx, pool, 40, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed professionals")
	}
	if err := seedOwners(ctx, pool, 3000, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed owners")
	}

	logger.Info().Msg("seed complete")
}

// randomWorkingHours opens Monday to Friday with a random morning start and
// evening end, and sometimes a Saturday morning.
func randomWorkingHours() schedule.WorkingHours {
	wh := schedule.WorkingHours{}
	start := schedule.FormatClock(gofakeit.Number(7, 9) * 60)
	end := schedule.FormatClock(gofakeit.Number(16, 19) * 60)

	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		wh[d] = schedule.DayHours{Active: true, Start: start, End: end}
	}
	wh["saturday"] = schedule.DayHours{Active: gofakeit.Bool(), Start: "08:00", End: "12:00"}
	wh["sunday"] = schedule.DayHours{Active: false, Start: "08:00", End: "12:00"}
	return wh
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding professionals")

	batch := &pgx.Batch{}
	for i := 0; i < count; i++ {
		wh, err := json.Marshal(randomWorkingHours())
		if err != nil {
			return err
		}

		lat := centerLat + gofakeit.Float64Range(-1.5, 1.5)
		lng := centerLng + gofakeit.Float64Range(-2, 2)
		radius := float64(gofakeit.RandomInt([]int{30, 50, 80, 120}))

		batch.Queue(`
			INSERT INTO professionals (id, name, working_hours, lat, lng, radius_km, consultation_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, uuid.New(), "Dr. "+gofakeit.LastName(), wh, lat, lng, radius, gofakeit.RandomInt(consultationLengths))
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	logger.Info().Msg("professionals seeded")
	return nil
}

func seedOwners(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding owners")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			ownerID := uuid.New()
			addr := gofakeit.Address()

			if _, err := tx.Exec(ctx, `
				INSERT INTO owners (id, name, address, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, ownerID, gofakeit.Name(), addr.Address); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			for n := gofakeit.Number(1, 4); n > 0; n-- {
				if _, err := tx.Exec(ctx, `
					INSERT INTO animals (id, owner_id, name, created_at)
					VALUES ($1, $2, $3, now())
				`, uuid.New(), ownerID, gofakeit.PetName()); err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("owners seeded")
	}

	return nil
}
