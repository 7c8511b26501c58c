package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInterval          = errors.New("invalid interval: start must be before end")
	ErrInvalidRequest           = errors.New("invalid request")
	ErrStartInPast              = errors.New("appointment start must be in the future")
	ErrInvalidWindow            = errors.New("invalid availability window")
	ErrSchedulingConflict       = errors.New("scheduling conflict")
	ErrAlreadyResolved          = errors.New("appointment is no longer pending")
	ErrAlreadyCompleted         = errors.New("appointment is already completed")
	ErrNotApproved              = errors.New("appointment is not approved")
	ErrNotEditable              = errors.New("only pending appointments can be edited")
	ErrNotCancellable           = errors.New("only pending or approved appointments can be cancelled")
	ErrDeleteActive             = errors.New("pending or approved appointments must be cancelled or rejected before deletion")
	ErrTrainerOrServiceNotFound = errors.New("trainer or service not found")
	ErrNotFound                 = errors.New("not found")
	ErrDuplicateAppointment     = errors.New("appointment already exists")
	ErrConcurrentModification   = errors.New("appointment was modified concurrently")
)

// ConflictError carries the colliding appointments so callers can show the full list.
type ConflictError struct {
	Collisions []Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %d appointment(s)", ErrSchedulingConflict, len(e.Collisions))
}

func (e *ConflictError) Unwrap() error { return ErrSchedulingConflict }

// Collisions extracts the collision list from err, if any.
func Collisions(err error) []Appointment {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Collisions
	}
	return nil
}
