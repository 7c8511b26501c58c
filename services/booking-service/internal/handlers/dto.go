package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

const localLayout = "2006-01-02T15:04"

type appointmentResponse struct {
	ID        string   `json:"id"`
	TrainerID string   `json:"trainer_id"`
	ServiceID string   `json:"service_id"`
	MemberID  string   `json:"member_id,omitempty"`
	Start     string   `json:"start"`
	End       string   `json:"end,omitempty"`
	Status    string   `json:"status"`
	Note      string   `json:"note,omitempty"`
	Version   int64    `json:"version"`
	CreatedAt string   `json:"created_at,omitempty"`
	Actions   []string `json:"actions"`
}

func (h *Handler) toResponse(a model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:        a.ID,
		TrainerID: a.TrainerID,
		ServiceID: a.ServiceID,
		MemberID:  a.MemberID,
		Start:     a.Start.In(h.loc).Format(time.RFC3339),
		Status:    a.Status.String(),
		Note:      a.Note,
		Version:   a.Version,
		Actions:   []string{},
	}
	for _, act := range lifecycle.AllowedActions(a.Status) {
		resp.Actions = append(resp.Actions, string(act))
	}
	if !a.End.IsZero() {
		resp.End = a.End.In(h.loc).Format(time.RFC3339)
	}
	if !a.CreatedAt.IsZero() {
		resp.CreatedAt = a.CreatedAt.In(h.loc).Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) toResponses(appts []model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, h.toResponse(a))
	}
	return out
}

// parseInstant accepts RFC3339 or a zone-less "YYYY-MM-DDTHH:MM" read in the schedule location.
func (h *Handler) parseInstant(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s required", model.ErrInvalidRequest, field)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localLayout, raw, h.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid %s", model.ErrInvalidRequest, field)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", model.ErrInvalidRequest, key)
	}
	return n, nil
}

func requireQuery(r *http.Request, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v := strings.TrimSpace(r.URL.Query().Get(k))
		if v == "" {
			missing = append(missing, k)
		}
		out[k] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", model.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return out, nil
}

var errInvalidJSON = fmt.Errorf("%w: invalid json body", model.ErrInvalidRequest)

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
