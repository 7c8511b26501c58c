package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

// Roles asserted by the gateway in the X-Role header.
const (
	RoleAdmin   = "admin"
	RoleTrainer = "trainer"
	RoleMember  = "member"
)

// Reader is the read side of the appointment store.
type Reader interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f model.ListFilter) ([]model.Appointment, error)
	Stats(ctx context.Context, now time.Time) (model.Stats, error)
}

type Handler struct {
	bookings *lifecycle.Service
	detector *conflict.Detector
	slots    *availability.Generator
	reader   Reader
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

type Deps struct {
	Bookings *lifecycle.Service
	Detector *conflict.Detector
	Slots    *availability.Generator
	Reader   Reader
	Logger   *slog.Logger
	Now      func() time.Time
}

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		bookings: d.Bookings,
		detector: d.Detector,
		slots:    d.Slots,
		reader:   d.Reader,
		logger:   d.Logger,
		loc:      d.Slots.Location(),
		now:      d.Now,
	}
}

// Register mounts the API on mux. Staff-only routes are wrapped with a role check.
func (h *Handler) Register(mux *http.ServeMux) {
	staff := httpx.RequireRole(RoleAdmin, RoleTrainer)
	admin := httpx.RequireRole(RoleAdmin)
	guard := func(m httpx.Middleware, fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, m)
	}

	mux.HandleFunc("GET /api/v1/availability", h.AvailableSlots)
	mux.HandleFunc("GET /api/v1/availability/times", h.SlotsForDate)
	mux.HandleFunc("GET /api/v1/trainers/{id}/schedule", h.WeeklySchedule)
	mux.HandleFunc("POST /api/v1/conflict-check", h.ConflictCheck)

	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("GET /api/v1/appointments", h.List)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/appointments/{id}", h.Edit)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", h.Cancel)

	mux.Handle("POST /api/v1/appointments/{id}/approve", guard(staff, h.Approve))
	mux.Handle("POST /api/v1/appointments/{id}/reject", guard(staff, h.Reject))
	mux.Handle("POST /api/v1/appointments/{id}/complete", guard(staff, h.Complete))
	mux.Handle("POST /api/v1/appointments/{id}/no-show", guard(staff, h.MarkNoShow))
	mux.Handle("DELETE /api/v1/appointments/{id}", guard(staff, h.Delete))
	mux.Handle("POST /api/v1/admin/appointments", guard(admin, h.Override))
	mux.Handle("GET /api/v1/stats", guard(staff, h.Stats))
}

func isStaff(r *http.Request) bool {
	role := httpx.Role(r)
	return role == RoleAdmin || role == RoleTrainer
}
