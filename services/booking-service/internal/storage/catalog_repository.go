package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

// CatalogRepository reads the trainer, service and availability data the engine consumes.
// Those records are owned elsewhere, so only the writes needed for seeding exist here.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) TrainerExists(ctx context.Context, trainerID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trainers WHERE id = $1)`, trainerID).Scan(&exists)
	return exists, err
}

func (r *CatalogRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, is_active
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.IsActive)
	if IsNotFound(err) {
		return model.Service{}, fmt.Errorf("service %s: %w", id, model.ErrNotFound)
	}
	return svc, err
}

func (r *CatalogRepository) ListActiveWindows(ctx context.Context, trainerID string) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, trainer_id, day_of_week, start_minute, end_minute, is_active
		FROM availability_windows
		WHERE trainer_id = $1 AND is_active
		ORDER BY day_of_week, start_minute
	`, trainerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []model.AvailabilityWindow
	for rows.Next() {
		var (
			w          model.AvailabilityWindow
			day        int16
			start, end int32
		)
		if err := rows.Scan(&w.ID, &w.TrainerID, &day, &start, &end, &w.IsActive); err != nil {
			return nil, err
		}
		w.DayOfWeek = time.Weekday(day)
		w.Start = calendar.TimeOfDay(start)
		w.End = calendar.TimeOfDay(end)
		windows = append(windows, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return windows, nil
}

func (r *CatalogRepository) UpsertTrainer(ctx context.Context, id, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trainers (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, id, name)
	return err
}

func (r *CatalogRepository) UpsertService(ctx context.Context, svc model.Service) error {
	if svc.DurationMinutes <= 0 {
		return fmt.Errorf("service %s: duration must be positive", svc.ID)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, is_active) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, duration_minutes = EXCLUDED.duration_minutes, is_active = EXCLUDED.is_active
	`, svc.ID, svc.Name, svc.DurationMinutes, svc.IsActive)
	return err
}

func (r *CatalogRepository) UpsertWindow(ctx context.Context, w model.AvailabilityWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_windows (id, trainer_id, day_of_week, start_minute, end_minute, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET day_of_week = EXCLUDED.day_of_week, start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute, is_active = EXCLUDED.is_active
	`, w.ID, w.TrainerID, int16(w.DayOfWeek), int32(w.Start), int32(w.End), w.IsActive)
	if IsMissingReference(err) {
		return model.ErrTrainerOrServiceNotFound
	}
	return err
}
