// Package lifecycle owns appointment state. Every booking path runs through the conflict
// detector and every write is version-checked and retried once on a concurrent update.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/fitbook/libs/otel"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
)

type Store interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	Save(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.Status, note string) (model.Appointment, error)
	// ApproveIfFree approves a pending appointment occupying own unless an approved peer of the
	// same trainer overlaps it. Check and write are atomic per trainer.
	ApproveIfFree(ctx context.Context, id string, expectedVersion int64, own calendar.Interval, note string) (model.Appointment, error)
	UpdateSchedule(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

type Catalog interface {
	TrainerExists(ctx context.Context, trainerID string) (bool, error)
	GetService(ctx context.Context, id string) (model.Service, error)
}

// Checker is satisfied by *conflict.Detector.
type Checker interface {
	Check(ctx context.Context, q conflict.Query) (conflict.Result, error)
}

type Service struct {
	store   Store
	catalog Catalog
	checker Checker
	obs     observe.Observer
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func New(store Store, catalog Catalog, checker Checker, obs observe.Observer, opts ...Option) *Service {
	if obs == nil {
		obs = observe.Nop{}
	}
	s := &Service{
		store:   store,
		catalog: catalog,
		checker: checker,
		obs:     obs,
		tracer:  otelx.Tracer("booking-service/lifecycle"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type BookingRequest struct {
	TrainerID string
	ServiceID string
	MemberID  string
	Start     time.Time
	Note      string
}

func (r BookingRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.TrainerID) == "" {
		missing = append(missing, "trainer_id")
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		missing = append(missing, "service_id")
	}
	if r.Start.IsZero() {
		missing = append(missing, "start")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", model.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

type EditRequest struct {
	ServiceID string
	Start     time.Time
	Note      string
	// MemberID, when set, must own the appointment.
	MemberID string
}

// Create books a pending appointment after checking it against every active peer.
func (s *Service) Create(ctx context.Context, req BookingRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Create")
	defer span.End()

	if !req.Start.IsZero() && !req.Start.After(s.now()) {
		return s.fail(ctx, span, "", "create", model.ErrStartInPast)
	}
	appt, err := s.book(ctx, req, model.StatusPending, conflict.Filter{})
	if err != nil {
		return s.fail(ctx, span, "", "create", err)
	}
	return appt, nil
}

// Override is the back-office booking path. Past starts are accepted. With approve the
// appointment is created approved, which only requires that no approved peer collides;
// otherwise it behaves like Create.
func (s *Service) Override(ctx context.Context, req BookingRequest, approve bool) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Override", trace.WithAttributes(attribute.Bool("approve", approve)))
	defer span.End()

	status, filter := model.StatusPending, conflict.Filter{}
	if approve {
		status, filter = model.StatusApproved, conflict.ApprovedOnly("")
	}
	appt, err := s.book(ctx, req, status, filter)
	if err != nil {
		return s.fail(ctx, span, "", "override", err)
	}
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest, status model.Status, filter conflict.Filter) (model.Appointment, error) {
	if err := req.validate(); err != nil {
		return model.Appointment{}, err
	}
	exists, err := s.catalog.TrainerExists(ctx, req.TrainerID)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("lookup trainer: %w", err)
	}
	if !exists {
		return model.Appointment{}, model.ErrTrainerOrServiceNotFound
	}
	svc, err := s.activeService(ctx, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}

	slot := calendar.NewInterval(req.Start, svc.Duration())
	if err := s.ensureFree(ctx, req.TrainerID, slot, filter); err != nil {
		return model.Appointment{}, err
	}

	saved, err := s.store.Save(ctx, model.Appointment{
		ID:        s.newID(),
		TrainerID: req.TrainerID,
		ServiceID: svc.ID,
		MemberID:  req.MemberID,
		Start:     slot.Start,
		End:       slot.End,
		Status:    status,
		CreatedAt: s.now(),
		Note:      req.Note,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	s.obs.TransitionApplied(ctx, saved, "", saved.Status)
	return saved, nil
}

// Edit reschedules a pending appointment, checking the new interval against every other
// active peer. The appointment stays pending.
func (s *Service) Edit(ctx context.Context, id string, req EditRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Edit", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	if req.Start.IsZero() {
		return s.fail(ctx, span, id, "edit", fmt.Errorf("%w: start required", model.ErrInvalidRequest))
	}
	updated, err := retryOnce(func() (model.Appointment, error) {
		cur, err := s.store.GetAppointment(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if req.MemberID != "" && cur.MemberID != req.MemberID {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
		}
		if cur.Status != model.StatusPending {
			return model.Appointment{}, model.ErrNotEditable
		}
		serviceID := cur.ServiceID
		if req.ServiceID != "" {
			serviceID = req.ServiceID
		}
		svc, err := s.activeService(ctx, serviceID)
		if err != nil {
			return model.Appointment{}, err
		}
		next := calendar.NewInterval(req.Start, svc.Duration())
		if err := s.ensureFree(ctx, cur.TrainerID, next, conflict.Filter{ExcludeID: cur.ID}); err != nil {
			return model.Appointment{}, err
		}
		cur.ServiceID = svc.ID
		cur.Start, cur.End = next.Start, next.End
		if req.Note != "" {
			cur.Note = req.Note
		}
		return s.store.UpdateSchedule(ctx, cur)
	})
	if err != nil {
		return s.fail(ctx, span, id, "edit", err)
	}
	s.obs.TransitionApplied(ctx, updated, model.StatusPending, model.StatusPending)
	return updated, nil
}

// Approve admits a pending appointment. Only approved peers can block it, so two pending
// requests for the same slot are settled here. The store serialises approvals per trainer,
// so of two overlapping requests approved at once exactly one is admitted.
func (s *Service) Approve(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, ActionApprove, "")
}

func (s *Service) Reject(ctx context.Context, id, reason string) (model.Appointment, error) {
	return s.transition(ctx, id, ActionReject, reason)
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	return s.transition(ctx, id, ActionCancel, reason)
}

func (s *Service) Complete(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, ActionComplete, "")
}

func (s *Service) MarkNoShow(ctx context.Context, id string) (model.Appointment, error) {
	return s.transition(ctx, id, ActionNoShow, "")
}

// MemberCancel lets a member withdraw one of their own pending or approved appointments.
// Appointments owned by someone else are reported as not found.
func (s *Service) MemberCancel(ctx context.Context, id, memberID, reason string) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.MemberCancel", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	var from model.Status
	updated, err := retryOnce(func() (model.Appointment, error) {
		cur, err := s.store.GetAppointment(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if memberID == "" || cur.MemberID != memberID {
			return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
		}
		if !cur.Status.Active() {
			return model.Appointment{}, model.ErrNotCancellable
		}
		from = cur.Status
		return s.store.UpdateStatus(ctx, id, cur.Version, model.StatusCancelled, noteFor(rules[ActionCancel], cur.Note, reason))
	})
	if err != nil {
		return s.fail(ctx, span, id, "member_cancel", err)
	}
	s.obs.TransitionApplied(ctx, updated, from, updated.Status)
	return updated, nil
}

// Delete physically removes a resolved appointment. Pending and approved appointments must be
// cancelled or rejected first.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Delete", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	var removed model.Appointment
	_, err := retryOnce(func() (model.Appointment, error) {
		cur, err := s.store.GetAppointment(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if !cur.Status.Deletable() {
			return model.Appointment{}, model.ErrDeleteActive
		}
		removed = cur
		return cur, s.store.Delete(ctx, id, cur.Version)
	})
	if err != nil {
		_, err = s.fail(ctx, span, id, "delete", err)
		return err
	}
	s.obs.TransitionApplied(ctx, removed, removed.Status, "deleted")
	return nil
}

func (s *Service) transition(ctx context.Context, id string, act Action, reason string) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle."+string(act), trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	r := rules[act]
	var from model.Status
	updated, err := retryOnce(func() (model.Appointment, error) {
		cur, err := s.store.GetAppointment(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if err := r.guard(cur.Status); err != nil {
			return model.Appointment{}, err
		}
		from = cur.Status
		note := noteFor(r, cur.Note, reason)
		if act == ActionApprove {
			own := s.effectiveInterval(ctx, cur)
			if err := s.ensureFree(ctx, cur.TrainerID, own, conflict.ApprovedOnly(cur.ID)); err != nil {
				return model.Appointment{}, err
			}
			return s.store.ApproveIfFree(ctx, id, cur.Version, own, note)
		}
		return s.store.UpdateStatus(ctx, id, cur.Version, r.to, note)
	})
	if err != nil {
		return s.fail(ctx, span, id, string(act), err)
	}
	s.obs.TransitionApplied(ctx, updated, from, updated.Status)
	return updated, nil
}

func (s *Service) ensureFree(ctx context.Context, trainerID string, candidate calendar.Interval, filter conflict.Filter) error {
	res, err := s.checker.Check(ctx, conflict.Query{TrainerID: trainerID, Candidate: candidate, Filter: filter})
	if err != nil {
		return err
	}
	if !res.Available {
		return &model.ConflictError{Collisions: res.Collisions}
	}
	return nil
}

func (s *Service) activeService(ctx context.Context, id string) (model.Service, error) {
	svc, err := s.catalog.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Service{}, model.ErrTrainerOrServiceNotFound
		}
		return model.Service{}, fmt.Errorf("lookup service: %w", err)
	}
	if !svc.IsActive || svc.DurationMinutes <= 0 {
		return model.Service{}, model.ErrTrainerOrServiceNotFound
	}
	return svc, nil
}

// effectiveInterval applies the end-time fallback to the appointment being approved, matching
// what the detector assumes for its peers.
func (s *Service) effectiveInterval(ctx context.Context, appt model.Appointment) calendar.Interval {
	if appt.HasEnd() {
		return appt.Interval()
	}
	dur, reason := conflict.DefaultFallbackDuration, conflict.ReasonServiceLookupFailed
	if svc, err := s.catalog.GetService(ctx, appt.ServiceID); err == nil && svc.DurationMinutes > 0 {
		dur, reason = svc.Duration(), conflict.ReasonMissingEnd
	}
	own := calendar.NewInterval(appt.Start, dur)
	s.obs.FallbackApplied(ctx, appt, own.End, reason)
	return own
}

func (s *Service) fail(ctx context.Context, span trace.Span, id, action string, err error) (model.Appointment, error) {
	s.obs.TransitionRejected(ctx, id, action, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return model.Appointment{}, err
}

// retryOnce re-runs fn a single time when the store reports a concurrent update. fn must
// re-read the appointment so the retry sees the winner's write.
func retryOnce(fn func() (model.Appointment, error)) (model.Appointment, error) {
	appt, err := fn()
	if errors.Is(err, model.ErrConcurrentModification) {
		appt, err = fn()
	}
	return appt, err
}
