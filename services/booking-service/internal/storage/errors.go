package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsMissingReference reports a foreign key violation, i.e. an unknown trainer or service.
func IsMissingReference(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// classifyInsert translates constraint violations from an appointment insert into domain errors.
func classifyInsert(id string, err error) error {
	switch {
	case IsMissingReference(err):
		return model.ErrTrainerOrServiceNotFound
	case IsConflict(err):
		return fmt.Errorf("appointment %s: %w", id, model.ErrDuplicateAppointment)
	default:
		return err
	}
}
