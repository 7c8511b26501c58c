package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound for a start and the inclusive bound for an end.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock offset from midnight in whole minutes.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (seconds must be zero). "24:00" is allowed
// so that a window can run to the end of the day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
	}
	t := NewTimeOfDay(h, m)
	if h < 0 || t > MinutesPerDay {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) AddMinutes(m int) TimeOfDay {
	return t + TimeOfDay(m)
}

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ClockOf returns the wall-clock time of day of ts, truncated to the minute.
func ClockOf(ts time.Time) TimeOfDay {
	return NewTimeOfDay(ts.Hour(), ts.Minute())
}

// Span is a weekday-scoped time-of-day range [Start, End).
type Span struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (s Span) Valid() bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= MinutesPerDay
}

func (s Span) Minutes() int {
	return int(s.End - s.Start)
}

// ContainsDuration enumerates every start = s.Start + k*step such that start+duration <= s.End.
// Alignment is relative to the span's own start, not to midnight. A span exactly as long as
// the duration yields one start; a shorter span, or a non-positive duration or step, yields none.
func ContainsDuration(s Span, durationMinutes, stepMinutes int) []TimeOfDay {
	if durationMinutes <= 0 || stepMinutes <= 0 || !s.Valid() {
		return nil
	}
	var starts []TimeOfDay
	for start := s.Start; start.AddMinutes(durationMinutes) <= s.End; start = start.AddMinutes(stepMinutes) {
		starts = append(starts, start)
	}
	return starts
}
