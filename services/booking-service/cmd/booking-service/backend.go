package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage/memstore"
)

type appointmentStore interface {
	lifecycle.Store
	handlers.Reader
	conflict.AppointmentSource
	BackfillEndTimes(ctx context.Context) (int64, error)
}

type catalogStore interface {
	lifecycle.Catalog
	availability.WindowSource
}

// backend bundles the stores and the domain services built on them.
// pool is nil when running on the in-memory store.
type backend struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	appts    appointmentStore
	catalog  catalogStore
	detector *conflict.Detector
	slots    *availability.Generator
	bookings *lifecycle.Service
}

func openBackend(ctx context.Context, cfg Config, logger *slog.Logger, obs observe.Observer) (*backend, error) {
	b := &backend{}
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		b.pool = pool
		b.outbox = outbox.NewRepository()
		b.appts = storage.NewAppointmentRepository(pool, b.outbox)
		b.catalog = storage.NewCatalogRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		store := memstore.New()
		if cfg.DevSeed {
			if err := seedDemo(store); err != nil {
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
		}
		b.appts = store
		b.catalog = store
	}

	b.detector = conflict.NewDetector(b.appts, b.catalog, obs)
	b.slots = availability.NewGenerator(b.catalog, b.catalog, b.detector, obs, cfg.slotConfig())
	b.bookings = lifecycle.New(b.appts, b.catalog, b.detector, obs)
	return b, nil
}

func (b *backend) Close() {
	b.pool.Close()
}

func (b *backend) requirePool(cmd string) error {
	if b.pool == nil {
		return fmt.Errorf("%s needs DATABASE_URL", cmd)
	}
	return nil
}

// seedDemo gives a database-less instance one trainer with a weekday schedule.
func seedDemo(store *memstore.Store) error {
	store.AddTrainer("demo-trainer", "Demo Trainer")
	store.AddService(model.Service{ID: "pt-60", Name: "Personal training", DurationMinutes: 60, IsActive: true})
	store.AddService(model.Service{ID: "assessment-30", Name: "Fitness assessment", DurationMinutes: 30, IsActive: true})
	for day := time.Monday; day <= time.Friday; day++ {
		for i, span := range []calendar.Span{
			{Start: calendar.NewTimeOfDay(7, 0), End: calendar.NewTimeOfDay(12, 0)},
			{Start: calendar.NewTimeOfDay(16, 0), End: calendar.NewTimeOfDay(20, 0)},
		} {
			err := store.AddWindow(model.AvailabilityWindow{
				ID:        fmt.Sprintf("demo-%d-%d", day, i),
				TrainerID: "demo-trainer",
				DayOfWeek: day,
				Start:     span.Start,
				End:       span.End,
				IsActive:  true,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
