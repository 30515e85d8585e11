package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/logging"
)

// slotTimes are the daily opening slots every seeded doctor gets.
var slotTimes = []string{"09:00", "10:30", "12:00", "14:00", "15:30"}

func main() {
	doctors := flag.Int("doctors", 20, "number of doctors to create")
	days := flag.Int("days", 7, "days of availability, starting tomorrow")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Bootstrap().Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "seed").Logger()
	logger.Info().Int("doctors", *doctors).Int("days", *days).Str("store", cfg.StoreBackend).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var prov booking.Provisioner
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		if err := db.EnsurePostgresSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("apply schema")
		}
		prov = booking.NewPgRepository(pool)
	case config.BackendMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := db.EnsureMongoIndexes(ctx, database); err != nil {
			logger.Warn().Err(err).Msg("could not ensure mongo indexes")
		}
		prov = booking.NewMongoRepository(database)
	default:
		logger.Fatal().Str("store", cfg.StoreBackend).Msg("seeding needs a persistent store")
	}

	gofakeit.Seed(time.Now().UnixNano())

	created, err := seedDoctors(ctx, prov, *doctors, *days, time.Now())
	if err != nil {
		logger.Fatal().Err(err).Int("created", created).Msg("seed doctors")
	}
	logger.Info().Int("created", created).Msg("seed complete")
}

// seedDoctors adds count doctors with fake names, cycling through the detectable
// specializations. Seeding is additive: a name already present gets a " (2)", " (3)", ... suffix.
func seedDoctors(ctx context.Context, prov booking.Provisioner, count, days int, now time.Time) (int, error) {
	specializations := booking.Specializations()

	created := 0
	for i := 0; i < count; i++ {
		base := "Dr. " + gofakeit.FirstName() + " " + gofakeit.LastName()
		name, err := uniqueName(ctx, prov, base)
		if err != nil {
			return created, err
		}

		if _, err := prov.CreateDoctor(ctx, booking.Doctor{
			Name:           name,
			Specialization: specializations[i%len(specializations)],
			Availability:   generateAvailability(now, days),
		}); err != nil {
			return created, fmt.Errorf("create doctor %q: %w", name, err)
		}
		created++
	}
	return created, nil
}

func uniqueName(ctx context.Context, prov booking.Provisioner, base string) (string, error) {
	name := base
	for suffix := 2; ; suffix++ {
		exists, err := prov.DoctorNameExists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("check name %q: %w", name, err)
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s (%d)", base, suffix)
	}
}

// generateAvailability returns open slots for the days days after now, dates as YYYY-MM-DD.
func generateAvailability(now time.Time, days int) []booking.Slot {
	out := make([]booking.Slot, 0, days*len(slotTimes))
	for d := 1; d <= days; d++ {
		date := now.AddDate(0, 0, d).Format(time.DateOnly)
		for _, t := range slotTimes {
			out = append(out, booking.Slot{Date: date, Time: t, Available: true})
		}
	}
	return out
}
