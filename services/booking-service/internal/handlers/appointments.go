package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

type createAppointmentRequest struct {
	TrainerID string `json:"trainer_id"`
	ServiceID string `json:"service_id"`
	MemberID  string `json:"member_id"`
	Start     string `json:"start"`
	Note      string `json:"note"`
	// Approve only applies to the admin override route.
	Approve bool `json:"approve"`
}

type editAppointmentRequest struct {
	ServiceID string `json:"service_id"`
	Start     string `json:"start"`
	Note      string `json:"note"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isBodyTooLarge(err) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, r, errInvalidJSON)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return h.decode(w, r, v)
}

func (h *Handler) bookingRequest(w http.ResponseWriter, r *http.Request) (createAppointmentRequest, lifecycle.BookingRequest, bool) {
	var req createAppointmentRequest
	if !h.decode(w, r, &req) {
		return req, lifecycle.BookingRequest{}, false
	}
	start, err := h.parseInstant("start", req.Start)
	if err != nil {
		h.writeError(w, r, err)
		return req, lifecycle.BookingRequest{}, false
	}
	memberID := strings.TrimSpace(req.MemberID)
	if httpx.Role(r) == RoleMember {
		memberID = httpx.UserID(r)
	}
	return req, lifecycle.BookingRequest{
		TrainerID: strings.TrimSpace(req.TrainerID),
		ServiceID: strings.TrimSpace(req.ServiceID),
		MemberID:  memberID,
		Start:     start,
		Note:      strings.TrimSpace(req.Note),
	}, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, req, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.bookings.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(appt))
}

func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	raw, req, ok := h.bookingRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.bookings.Override(r.Context(), req, raw.Approve)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(appt))
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := h.parseInstant("start", req.Start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	edit := lifecycle.EditRequest{
		ServiceID: strings.TrimSpace(req.ServiceID),
		Start:     start,
		Note:      strings.TrimSpace(req.Note),
	}
	if !isStaff(r) {
		edit.MemberID = httpx.UserID(r)
		if edit.MemberID == "" {
			httpx.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
	}
	appt, err := h.bookings.Edit(r.Context(), r.PathValue("id"), edit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(appt))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.reader.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !isStaff(r) && appt.MemberID != httpx.UserID(r) {
		h.writeError(w, r, fmt.Errorf("appointment %s: %w", appt.ID, model.ErrNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResponse(appt))
}

// List filters by trainer_id, member_id, status (comma separated), from and to, ordered by
// sort (start, created_at, status, trainer, service) and order (asc, desc). Members only ever
// see their own appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ListFilter{
		TrainerID: strings.TrimSpace(q.Get("trainer_id")),
		MemberID:  strings.TrimSpace(q.Get("member_id")),
	}
	if !isStaff(r) {
		f.MemberID = httpx.UserID(r)
		if f.MemberID == "" {
			httpx.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
	}
	for _, raw := range httpx.ParseList(q.Get("status")) {
		st, err := model.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	var err error
	if v := q.Get("from"); v != "" {
		if f.From, err = h.parseBound("from", v); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = h.parseBound("to", v); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if f.Sort, err = model.ParseSortField(q.Get("sort")); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
		return
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		f.Desc = true
	default:
		h.writeError(w, r, fmt.Errorf("%w: order must be asc or desc", model.ErrInvalidRequest))
		return
	}
	if f.Limit, err = queryInt(r, "limit", 100); err != nil {
		h.writeError(w, r, err)
		return
	}

	appts, err := h.reader.ListAppointments(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": h.toResponses(appts)})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.bookings.Approve(r.Context(), r.PathValue("id")))
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.bookings.Complete(r.Context(), r.PathValue("id")))
}

func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.bookings.MarkNoShow(r.Context(), r.PathValue("id")))
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	h.respond(w, r)(h.bookings.Reject(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Reason)))
}

// Cancel is open to members for their own appointments; staff may cancel any.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	id, reason := r.PathValue("id"), strings.TrimSpace(req.Reason)
	if isStaff(r) {
		h.respond(w, r)(h.bookings.Cancel(r.Context(), id, reason))
		return
	}
	memberID := httpx.UserID(r)
	if memberID == "" {
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	h.respond(w, r)(h.bookings.MemberCancel(r.Context(), id, memberID, reason))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reader.Stats(r.Context(), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) func(model.Appointment, error) {
	return func(appt model.Appointment, err error) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, h.toResponse(appt))
	}
}

// parseBound accepts an instant or a bare date, which means midnight in the schedule location.
func (h *Handler) parseBound(field, raw string) (time.Time, error) {
	if d, err := calendar.ParseDate(raw); err == nil {
		return d.At(0, h.loc), nil
	}
	return h.parseInstant(field, raw)
}
