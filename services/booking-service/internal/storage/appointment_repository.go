package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
)

const appointmentColumns = `id, trainer_id, service_id, member_id, start_time, end_time, status, note, version, created_at`

// qualifiedColumns is appointmentColumns for queries that alias appointments as a.
const qualifiedColumns = `a.id, a.trainer_id, a.service_id, a.member_id, a.start_time, a.end_time, a.status, a.note, a.version, a.created_at`

// EventWriter persists a domain event inside the transaction that produced it.
type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// AppointmentRepository stores appointments. Every write is version-checked and commits its
// outbox event in the same transaction.
type AppointmentRepository struct {
	pool   *db.Pool
	events EventWriter
	now    func() time.Time
}

func NewAppointmentRepository(pool *db.Pool, events EventWriter) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, events: events, now: time.Now}
}

func (r *AppointmentRepository) ListActiveAppointments(ctx context.Context, trainerID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE trainer_id = $1
			AND status IN ('pending', 'approved')
		ORDER BY start_time ASC
	`, trainerID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// sortColumns is the closed mapping from sort field to column; request input never reaches SQL.
var sortColumns = map[model.SortField]string{
	model.SortByStart:     "start_time",
	model.SortByCreatedAt: "created_at",
	model.SortByStatus:    "status",
	model.SortByTrainer:   "trainer_id",
	model.SortByService:   "service_id",
}

func (r *AppointmentRepository) ListAppointments(ctx context.Context, f model.ListFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.TrainerID != "" {
		add("trainer_id = $%d", f.TrainerID)
	}
	if f.MemberID != "" {
		add("member_id = $%d", f.MemberID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = s.String()
		}
		add("status = ANY($%d)", statuses)
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To)
	}

	column, ok := sortColumns[f.Sort]
	if !ok {
		column = sortColumns[model.SortByStart]
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	q := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY %s %s, start_time %s, id %s LIMIT $%d`, column, dir, dir, dir, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if IsNotFound(err) {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
	}
	return appt, err
}

// Save inserts a new appointment. An approved insert takes the trainer lock and is refused
// when an approved peer overlaps it.
func (r *AppointmentRepository) Save(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	var saved model.Appointment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if appt.Status == model.StatusApproved {
			if err := r.admit(ctx, tx, appt.TrainerID, appt.ID, appt.Interval()); err != nil {
				return err
			}
		}
		var err error
		saved, err = scanAppointment(tx.QueryRow(ctx, `
			INSERT INTO appointments (id, trainer_id, service_id, member_id, start_time, end_time, status, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+appointmentColumns,
			appt.ID, appt.TrainerID, appt.ServiceID, appt.MemberID, appt.Start, nullableTime(appt.End), appt.Status.String(), appt.Note))
		if err != nil {
			return classifyInsert(appt.ID, err)
		}
		return r.emit(ctx, tx, saved, outbox.StatusKind(saved.Status))
	})
	return saved, err
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.Status, note string) (model.Appointment, error) {
	var updated model.Appointment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $3, note = $4, version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $2
			RETURNING `+appointmentColumns,
			id, expectedVersion, status.String(), note))
		if IsNotFound(err) {
			return r.classifyMiss(ctx, tx, id, expectedVersion)
		}
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, updated, outbox.StatusKind(updated.Status))
	})
	return updated, err
}

func (r *AppointmentRepository) ApproveIfFree(ctx context.Context, id string, expectedVersion int64, own calendar.Interval, note string) (model.Appointment, error) {
	var updated model.Appointment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var trainerID string
		err := tx.QueryRow(ctx, `SELECT trainer_id FROM appointments WHERE id = $1`, id).Scan(&trainerID)
		if IsNotFound(err) {
			return fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := r.admit(ctx, tx, trainerID, id, own); err != nil {
			return err
		}
		updated, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'approved', note = $3, version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $2 AND status = 'pending'
			RETURNING `+appointmentColumns,
			id, expectedVersion, note))
		if IsNotFound(err) {
			if err := r.classifyMiss(ctx, tx, id, expectedVersion); err != nil {
				return err
			}
			return model.ErrAlreadyResolved
		}
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, updated, outbox.StatusKind(updated.Status))
	})
	return updated, err
}

// admit locks the trainer row for the rest of tx, which serialises approvals per trainer, and
// fails with a ConflictError when an approved appointment other than excludeID overlaps iv.
// Missing end times are resolved as the conflict detector does.
func (r *AppointmentRepository) admit(ctx context.Context, tx pgx.Tx, trainerID, excludeID string, iv calendar.Interval) error {
	var locked string
	err := tx.QueryRow(ctx, `SELECT id FROM trainers WHERE id = $1 FOR UPDATE`, trainerID).Scan(&locked)
	if IsNotFound(err) {
		return model.ErrTrainerOrServiceNotFound
	}
	if err != nil {
		return fmt.Errorf("lock trainer: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+qualifiedColumns+`
		FROM appointments a
		LEFT JOIN services s ON s.id = a.service_id
		WHERE a.trainer_id = $1
			AND a.status = 'approved'
			AND a.id <> $2
			AND a.start_time < $4
			AND COALESCE(
				CASE WHEN a.end_time > a.start_time THEN a.end_time END,
				a.start_time + make_interval(mins => s.duration_minutes),
				a.start_time + make_interval(mins => $5)
			) > $3
		ORDER BY a.start_time ASC
	`, trainerID, excludeID, iv.Start, iv.End, int(model.DefaultFallbackDuration/time.Minute))
	if err != nil {
		return err
	}
	collisions, err := collectAppointments(rows)
	if err != nil {
		return err
	}
	if len(collisions) > 0 {
		return &model.ConflictError{Collisions: collisions}
	}
	return nil
}

// UpdateSchedule rewrites the service and interval of a pending appointment.
func (r *AppointmentRepository) UpdateSchedule(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	var updated model.Appointment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = scanAppointment(tx.QueryRow(ctx, `
			UPDATE appointments
			SET service_id = $3, start_time = $4, end_time = $5, note = $6, version = version + 1, updated_at = now()
			WHERE id = $1 AND version = $2 AND status = 'pending'
			RETURNING `+appointmentColumns,
			appt.ID, appt.Version, appt.ServiceID, appt.Start, nullableTime(appt.End), appt.Note))
		if IsNotFound(err) {
			if err := r.classifyMiss(ctx, tx, appt.ID, appt.Version); err != nil {
				return err
			}
			return model.ErrNotEditable
		}
		if err != nil {
			if IsMissingReference(err) {
				return model.ErrTrainerOrServiceNotFound
			}
			return err
		}
		return r.emit(ctx, tx, updated, outbox.KindRescheduled)
	})
	return updated, err
}

// Delete removes a resolved appointment. The status predicate repeats the lifecycle rule so
// a pending or approved row can never be removed through this path.
func (r *AppointmentRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		deleted, err := scanAppointment(tx.QueryRow(ctx, `
			DELETE FROM appointments
			WHERE id = $1 AND version = $2
				AND status IN ('rejected', 'completed', 'cancelled', 'no_show')
			RETURNING `+appointmentColumns,
			id, expectedVersion))
		if IsNotFound(err) {
			if err := r.classifyMiss(ctx, tx, id, expectedVersion); err != nil {
				return err
			}
			return model.ErrDeleteActive
		}
		if err != nil {
			return err
		}
		return r.emit(ctx, tx, deleted, outbox.KindDeleted)
	})
}

// Stats counts appointments per status and trainer.
func (r *AppointmentRepository) Stats(ctx context.Context, now time.Time) (model.Stats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trainer_id, status, count(*),
			count(*) FILTER (WHERE start_time > $1 AND status IN ('pending', 'approved'))
		FROM appointments
		GROUP BY trainer_id, status
	`, now)
	if err != nil {
		return model.Stats{}, err
	}
	defer rows.Close()

	stats := model.NewStats()
	for rows.Next() {
		var (
			trainerID, status string
			count, upcoming   int
		)
		if err := rows.Scan(&trainerID, &status, &count, &upcoming); err != nil {
			return model.Stats{}, err
		}
		stats.Total += count
		stats.ByStatus[model.Status(status)] += count
		stats.ByTrainer[trainerID] += count
		stats.Upcoming += upcoming
	}
	if rows.Err() != nil {
		return model.Stats{}, rows.Err()
	}
	return stats, nil
}

// BackfillEndTimes persists start + service duration for rows whose end time is missing or
// not after the start. It returns the number of rows repaired.
func (r *AppointmentRepository) BackfillEndTimes(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments a
		SET end_time = a.start_time + make_interval(mins => s.duration_minutes),
			version = a.version + 1,
			updated_at = now()
		FROM services s
		WHERE a.service_id = s.id
			AND (a.end_time IS NULL OR a.end_time <= a.start_time)
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AppointmentRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) emit(ctx context.Context, tx pgx.Tx, appt model.Appointment, kind outbox.Kind) error {
	if r.events == nil {
		return nil
	}
	evt, err := outbox.AppointmentEvent(appt, kind, r.now())
	if err != nil {
		return err
	}
	if err := r.events.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// classifyMiss explains why a version-checked statement matched no row. It returns nil when
// the row exists at the expected version, leaving the caller to name the failed predicate.
func (r *AppointmentRepository) classifyMiss(ctx context.Context, tx pgx.Tx, id string, expectedVersion int64) error {
	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM appointments WHERE id = $1`, id).Scan(&version)
	if IsNotFound(err) {
		return fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if version != expectedVersion {
		return model.ErrConcurrentModification
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt   model.Appointment
		end    *time.Time
		status string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.TrainerID,
		&appt.ServiceID,
		&appt.MemberID,
		&appt.Start,
		&end,
		&status,
		&appt.Note,
		&appt.Version,
		&appt.CreatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	if end != nil {
		appt.End = *end
	}
	appt.Status = model.Status(status)
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
