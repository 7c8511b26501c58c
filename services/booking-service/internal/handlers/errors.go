package handlers

import (
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

type conflictResponse struct {
	Error      string                `json:"error"`
	Collisions []appointmentResponse `json:"collisions"`
}

type retryableResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

var badRequest = []error{
	model.ErrInvalidInterval,
	model.ErrInvalidRequest,
	model.ErrStartInPast,
	model.ErrInvalidWindow,
}

var illegalTransition = []error{
	model.ErrAlreadyResolved,
	model.ErrAlreadyCompleted,
	model.ErrNotApproved,
	model.ErrNotEditable,
	model.ErrNotCancellable,
	model.ErrDeleteActive,
}

// writeError maps domain errors to HTTP responses. Anything unrecognised is logged and
// reported as 500 without leaking details.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *model.ConflictError
	switch {
	case errors.As(err, &ce):
		httpx.WriteJSON(w, http.StatusConflict, conflictResponse{
			Error:      model.ErrSchedulingConflict.Error(),
			Collisions: h.toResponses(ce.Collisions),
		})
	case errors.Is(err, model.ErrConcurrentModification):
		httpx.WriteJSON(w, http.StatusConflict, retryableResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, model.ErrTrainerOrServiceNotFound), errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case matchesAny(err, badRequest):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case matchesAny(err, illegalTransition), errors.Is(err, model.ErrDuplicateAppointment):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
