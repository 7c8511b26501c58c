package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

type dayResponse struct {
	Date    calendar.Date        `json:"date"`
	Weekday string               `json:"weekday"`
	Slots   []calendar.TimeOfDay `json:"slots"`
}

type availabilityResponse struct {
	TrainerID string        `json:"trainer_id"`
	ServiceID string        `json:"service_id"`
	Days      []dayResponse `json:"days"`
}

func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "trainer_id", "service_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	days, err := queryInt(r, "days", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	slots, err := h.slots.AvailableSlots(r.Context(), q["trainer_id"], q["service_id"], days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	locale := calendar.ParseLocale(r.URL.Query().Get("lang"))
	resp := availabilityResponse{TrainerID: q["trainer_id"], ServiceID: q["service_id"], Days: []dayResponse{}}
	for _, d := range availability.SortedDates(slots) {
		resp.Days = append(resp.Days, dayResponse{
			Date:    d,
			Weekday: calendar.DayName(d.Weekday(), locale),
			Slots:   slots[d],
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) SlotsForDate(w http.ResponseWriter, r *http.Request) {
	q, err := requireQuery(r, "trainer_id", "service_id", "date")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := calendar.ParseDate(q["date"])
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}

	slots, err := h.slots.SlotsForDate(r.Context(), q["trainer_id"], q["service_id"], date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	locale := calendar.ParseLocale(r.URL.Query().Get("lang"))
	httpx.WriteJSON(w, http.StatusOK, dayResponse{
		Date:    date,
		Weekday: calendar.DayName(date.Weekday(), locale),
		Slots:   slots,
	})
}

type scheduleDayResponse struct {
	Weekday int             `json:"weekday"`
	Name    string          `json:"name"`
	Windows []windowPayload `json:"windows"`
}

type windowPayload struct {
	Start calendar.TimeOfDay `json:"start"`
	End   calendar.TimeOfDay `json:"end"`
}

func (h *Handler) WeeklySchedule(w http.ResponseWriter, r *http.Request) {
	trainerID := r.PathValue("id")
	days, err := h.slots.WeeklySchedule(r.Context(), trainerID, calendar.ParseLocale(r.URL.Query().Get("lang")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]scheduleDayResponse, 0, len(days))
	for _, d := range days {
		windows := make([]windowPayload, 0, len(d.Windows))
		for _, s := range d.Windows {
			windows = append(windows, windowPayload{Start: s.Start, End: s.End})
		}
		out = append(out, scheduleDayResponse{Weekday: int(d.Weekday), Name: d.Name, Windows: windows})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"trainer_id": trainerID, "days": out})
}

type conflictCheckRequest struct {
	TrainerID            string `json:"trainer_id"`
	Start                string `json:"start"`
	End                  string `json:"end"`
	DurationMinutes      int    `json:"duration_minutes"`
	ExcludeAppointmentID string `json:"exclude_appointment_id"`
}

type conflictCheckResponse struct {
	Available  bool                  `json:"available"`
	Collisions []appointmentResponse `json:"collisions"`
}

// ConflictCheck answers IsAvailable for an arbitrary interval. Either end or
// duration_minutes bounds the candidate.
func (h *Handler) ConflictCheck(w http.ResponseWriter, r *http.Request) {
	var req conflictCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TrainerID == "" {
		h.writeError(w, r, fmt.Errorf("%w: trainer_id required", model.ErrInvalidRequest))
		return
	}
	start, err := h.parseInstant("start", req.Start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var end time.Time
	switch {
	case req.End != "":
		if end, err = h.parseInstant("end", req.End); err != nil {
			h.writeError(w, r, err)
			return
		}
	case req.DurationMinutes > 0:
		end = start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	default:
		h.writeError(w, r, fmt.Errorf("%w: end or duration_minutes required", model.ErrInvalidRequest))
		return
	}

	var exclude *string
	if req.ExcludeAppointmentID != "" {
		exclude = &req.ExcludeAppointmentID
	}
	ok, collisions, err := h.detector.IsAvailable(r.Context(), req.TrainerID, calendar.Interval{Start: start, End: end}, exclude)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, conflictCheckResponse{Available: ok, Collisions: h.toResponses(collisions)})
}
