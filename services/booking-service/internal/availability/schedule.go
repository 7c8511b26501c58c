package availability

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
)

// ScheduleDay is one weekday of a trainer's recurring schedule.
type ScheduleDay struct {
	Weekday time.Weekday
	Name    string
	Windows []calendar.Span
}

// weekOrder lists days the way the trainer schedule is shown, Monday first.
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// WeeklySchedule groups the trainer's active windows by weekday. Every day is present; days
// off have no windows.
func (g *Generator) WeeklySchedule(ctx context.Context, trainerID string, locale calendar.Locale) ([]ScheduleDay, error) {
	windows, err := g.windows.ListActiveWindows(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}

	var byDay [7][]calendar.Span
	for _, w := range windows {
		if !w.IsActive || w.Validate() != nil {
			continue
		}
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], w.Span())
	}

	days := make([]ScheduleDay, 0, len(weekOrder))
	for _, wd := range weekOrder {
		spans := byDay[wd]
		slices.SortFunc(spans, func(a, b calendar.Span) int { return int(a.Start - b.Start) })
		if spans == nil {
			spans = []calendar.Span{}
		}
		days = append(days, ScheduleDay{Weekday: wd, Name: calendar.DayName(wd, locale), Windows: spans})
	}
	return days, nil
}
