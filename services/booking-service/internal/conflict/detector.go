// Package conflict decides whether a candidate interval may be booked for a trainer. It is the
// single authority every booking path consults: slot listing, create, edit, admin override
// and approval.
package conflict

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/fitbook/libs/otel"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
)

const DefaultFallbackDuration = model.DefaultFallbackDuration

// Fallback reasons reported to the observer.
const (
	ReasonMissingEnd          = "missing_end"
	ReasonServiceLookupFailed = "service_lookup_failed"
)

type AppointmentSource interface {
	ListActiveAppointments(ctx context.Context, trainerID string) ([]model.Appointment, error)
}

type ServiceSource interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type Detector struct {
	appts    AppointmentSource
	services ServiceSource
	obs      observe.Observer
	tracer   trace.Tracer
}

func NewDetector(appts AppointmentSource, services ServiceSource, obs observe.Observer) *Detector {
	if obs == nil {
		obs = observe.Nop{}
	}
	return &Detector{
		appts:    appts,
		services: services,
		obs:      obs,
		tracer:   otelx.Tracer("booking-service/conflict"),
	}
}

// Query is a single availability question.
type Query struct {
	TrainerID string
	Candidate calendar.Interval
	Filter    Filter
}

type Result struct {
	Available  bool
	Collisions []model.Appointment
}

// IsAvailable reports whether candidate is free for the trainer, ignoring excludeID when set.
// Collisions are returned sorted by start and are never nil.
func (d *Detector) IsAvailable(ctx context.Context, trainerID string, candidate calendar.Interval, excludeID *string) (bool, []model.Appointment, error) {
	q := Query{TrainerID: trainerID, Candidate: candidate}
	if excludeID != nil {
		q.Filter.ExcludeID = *excludeID
	}
	res, err := d.Check(ctx, q)
	if err != nil {
		return false, nil, err
	}
	return res.Available, res.Collisions, nil
}

func (d *Detector) Check(ctx context.Context, q Query) (Result, error) {
	if !q.Candidate.Valid() {
		return Result{}, model.ErrInvalidInterval
	}

	ctx, span := d.tracer.Start(ctx, "conflict.Check", trace.WithAttributes(
		attribute.String("trainer.id", q.TrainerID),
		attribute.String("candidate.start", q.Candidate.Start.Format(time.RFC3339)),
		attribute.String("candidate.end", q.Candidate.End.Format(time.RFC3339)),
	))
	defer span.End()

	d.obs.CheckStarted(ctx, q.TrainerID, q.Candidate)

	snap, err := d.Load(ctx, q.TrainerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	collisions := snap.Collisions(q.Candidate, q.Filter)
	for _, c := range collisions {
		d.obs.CollisionFound(ctx, q.TrainerID, q.Candidate, c)
	}
	span.SetAttributes(attribute.Int("collisions", len(collisions)))
	return Result{Available: len(collisions) == 0, Collisions: collisions}, nil
}

// Load reads the trainer's active appointments once and resolves their effective intervals.
// The snapshot can then answer many candidate checks without further I/O.
func (d *Detector) Load(ctx context.Context, trainerID string) (*Snapshot, error) {
	appts, err := d.appts.ListActiveAppointments(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	durations := map[string]time.Duration{}
	booked := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if !a.Status.Active() {
			continue
		}
		if !a.HasEnd() {
			a.End = d.fallbackEnd(ctx, a, durations)
		}
		booked = append(booked, a)
	}
	sort.SliceStable(booked, func(i, j int) bool { return booked[i].Start.Before(booked[j].Start) })
	return &Snapshot{TrainerID: trainerID, booked: booked}, nil
}

func (d *Detector) fallbackEnd(ctx context.Context, a model.Appointment, cache map[string]time.Duration) time.Time {
	dur, ok := cache[a.ServiceID]
	reason := ReasonMissingEnd
	if !ok {
		svc, err := d.services.GetService(ctx, a.ServiceID)
		switch {
		case err != nil, svc.DurationMinutes <= 0:
			dur = DefaultFallbackDuration
			reason = ReasonServiceLookupFailed
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				trace.SpanFromContext(ctx).RecordError(err)
			}
		default:
			dur = svc.Duration()
			cache[a.ServiceID] = dur
		}
	}
	end := a.Start.Add(dur)
	d.obs.FallbackApplied(ctx, a, end, reason)
	return end
}
