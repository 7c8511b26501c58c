// Package observe is the scheduling engine's observability collaborator. The detector, slot
// generator and lifecycle report at fixed points (check entry, collision found, fallback applied,
// transition applied) instead of logging inline.
package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

type Observer interface {
	CheckStarted(ctx context.Context, trainerID string, candidate calendar.Interval)
	CollisionFound(ctx context.Context, trainerID string, candidate calendar.Interval, collision model.Appointment)
	// FallbackApplied reports DataIntegrityFallbackApplied: a stored appointment had no usable end.
	FallbackApplied(ctx context.Context, appt model.Appointment, effectiveEnd time.Time, reason string)
	TransitionApplied(ctx context.Context, appt model.Appointment, from, to model.Status)
	TransitionRejected(ctx context.Context, appointmentID string, action string, err error)
	SlotsGenerated(ctx context.Context, trainerID string, days, slots int, elapsed time.Duration)
}

// Nop discards every event.
type Nop struct{}

func (Nop) CheckStarted(context.Context, string, calendar.Interval)                          {}
func (Nop) CollisionFound(context.Context, string, calendar.Interval, model.Appointment)     {}
func (Nop) FallbackApplied(context.Context, model.Appointment, time.Time, string)            {}
func (Nop) TransitionApplied(context.Context, model.Appointment, model.Status, model.Status) {}
func (Nop) TransitionRejected(context.Context, string, string, error)                        {}
func (Nop) SlotsGenerated(context.Context, string, int, int, time.Duration)                  {}

// Recorder forwards events to a structured logger and, when set, to Prometheus metrics.
type Recorder struct {
	logger  *slog.Logger
	metrics *Metrics
}

func New(logger *slog.Logger, metrics *Metrics) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{logger: logger, metrics: metrics}
}

func (r *Recorder) CheckStarted(ctx context.Context, trainerID string, candidate calendar.Interval) {
	r.logger.DebugContext(ctx, "conflict check",
		"trainer_id", trainerID,
		"start", candidate.Start.Format(time.RFC3339),
		"end", candidate.End.Format(time.RFC3339),
	)
	if r.metrics != nil {
		r.metrics.checks.Inc()
	}
}

func (r *Recorder) CollisionFound(ctx context.Context, trainerID string, candidate calendar.Interval, collision model.Appointment) {
	r.logger.InfoContext(ctx, "collision found",
		"trainer_id", trainerID,
		"candidate_start", candidate.Start.Format(time.RFC3339),
		"appointment_id", collision.ID,
		"appointment_status", collision.Status.String(),
	)
	if r.metrics != nil {
		r.metrics.collisions.WithLabelValues(collision.Status.String()).Inc()
	}
}

func (r *Recorder) FallbackApplied(ctx context.Context, appt model.Appointment, effectiveEnd time.Time, reason string) {
	r.logger.WarnContext(ctx, "data integrity fallback applied",
		"appointment_id", appt.ID,
		"service_id", appt.ServiceID,
		"start", appt.Start.Format(time.RFC3339),
		"effective_end", effectiveEnd.Format(time.RFC3339),
		"reason", reason,
	)
	if r.metrics != nil {
		r.metrics.fallbacks.WithLabelValues(reason).Inc()
	}
}

func (r *Recorder) TransitionApplied(ctx context.Context, appt model.Appointment, from, to model.Status) {
	r.logger.InfoContext(ctx, "appointment transition",
		"appointment_id", appt.ID,
		"trainer_id", appt.TrainerID,
		"from", from.String(),
		"to", to.String(),
	)
	if r.metrics != nil {
		r.metrics.transitions.WithLabelValues(from.String(), to.String()).Inc()
	}
}

func (r *Recorder) TransitionRejected(ctx context.Context, appointmentID string, action string, err error) {
	r.logger.InfoContext(ctx, "appointment transition rejected",
		"appointment_id", appointmentID,
		"action", action,
		"err", err,
	)
	if r.metrics != nil {
		r.metrics.rejections.WithLabelValues(action).Inc()
	}
}

func (r *Recorder) SlotsGenerated(ctx context.Context, trainerID string, days, slots int, elapsed time.Duration) {
	r.logger.DebugContext(ctx, "slots generated",
		"trainer_id", trainerID,
		"days", days,
		"slots", slots,
		"duration_ms", elapsed.Milliseconds(),
	)
	if r.metrics != nil {
		r.metrics.slotLatency.Observe(elapsed.Seconds())
	}
}
