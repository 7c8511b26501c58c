package model

import (
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
)

type Appointment struct {
	ID        string
	TrainerID string
	ServiceID string
	MemberID  string
	Start     time.Time
	// End is authoritative when set. Rows created before end times were persisted carry a
	// zero End and are resolved by the conflict detector's fallback.
	End       time.Time
	Status    Status
	CreatedAt time.Time
	Note      string
	Version   int64
}

// HasEnd reports whether the stored end is usable as-is.
func (a Appointment) HasEnd() bool {
	return !a.End.IsZero() && a.End.After(a.Start)
}

// DefaultFallbackDuration is assumed for an appointment with no usable end whose service
// cannot be resolved.
const DefaultFallbackDuration = 60 * time.Minute

// EffectiveInterval is the interval the appointment occupies. A missing end becomes Start plus
// serviceDuration, or plus DefaultFallbackDuration when serviceDuration is not positive.
func (a Appointment) EffectiveInterval(serviceDuration time.Duration) calendar.Interval {
	if a.HasEnd() {
		return a.Interval()
	}
	if serviceDuration <= 0 {
		serviceDuration = DefaultFallbackDuration
	}
	return calendar.NewInterval(a.Start, serviceDuration)
}

// Interval returns the stored [Start, End). Callers that may see legacy rows go through the
// conflict detector instead, which applies the end-time fallback.
func (a Appointment) Interval() calendar.Interval {
	return calendar.Interval{Start: a.Start, End: a.End}
}

// AvailabilityWindow is one recurring weekly opening for a trainer.
type AvailabilityWindow struct {
	ID        string
	TrainerID string
	DayOfWeek time.Weekday
	Start     calendar.TimeOfDay
	End       calendar.TimeOfDay
	IsActive  bool
}

func (w AvailabilityWindow) Span() calendar.Span {
	return calendar.Span{Start: w.Start, End: w.End}
}

func (w AvailabilityWindow) Validate() error {
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return ErrInvalidWindow
	}
	if !w.Span().Valid() {
		return ErrInvalidWindow
	}
	return nil
}

// ContainsDuration enumerates the window's candidate starts for a booking of durationMinutes.
func (w AvailabilityWindow) ContainsDuration(durationMinutes, stepMinutes int) []calendar.TimeOfDay {
	return calendar.ContainsDuration(w.Span(), durationMinutes, stepMinutes)
}

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	IsActive        bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
