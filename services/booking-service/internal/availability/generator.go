// Package availability turns a trainer's recurring weekly windows into concrete bookable slots,
// consulting the conflict detector for every candidate.
package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
)

const (
	DefaultStepMinutes = 30
	DefaultHorizonDays = 30
	MaxHorizonDays     = 90
)

type WindowSource interface {
	ListActiveWindows(ctx context.Context, trainerID string) ([]model.AvailabilityWindow, error)
}

type ServiceSource interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

// SnapshotLoader is satisfied by *conflict.Detector.
type SnapshotLoader interface {
	Load(ctx context.Context, trainerID string) (*conflict.Snapshot, error)
}

type Config struct {
	StepMinutes int
	HorizonDays int
	// PendingBlocks hides slots that overlap a pending request. When false only approved
	// appointments hide a slot; booking still goes through the full detector.
	PendingBlocks bool
	Location      *time.Location
	Now           func() time.Time
}

func (c Config) withDefaults() Config {
	if c.StepMinutes <= 0 {
		c.StepMinutes = DefaultStepMinutes
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.HorizonDays > MaxHorizonDays {
		c.HorizonDays = MaxHorizonDays
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Generator struct {
	windows  WindowSource
	services ServiceSource
	snaps    SnapshotLoader
	obs      observe.Observer
	cfg      Config
}

func NewGenerator(windows WindowSource, services ServiceSource, snaps SnapshotLoader, obs observe.Observer, cfg Config) *Generator {
	if obs == nil {
		obs = observe.Nop{}
	}
	return &Generator{
		windows:  windows,
		services: services,
		snaps:    snaps,
		obs:      obs,
		cfg:      cfg.withDefaults(),
	}
}

func (g *Generator) Location() *time.Location { return g.cfg.Location }

// Today is the current civil date in the schedule location.
func (g *Generator) Today() calendar.Date {
	return calendar.DateOf(g.cfg.Now().In(g.cfg.Location))
}

// AvailableSlots lists free slot starts for each date in [today+1, today+horizonDays]. Dates
// without a free slot are omitted. horizonDays <= 0 selects the configured default and values
// above MaxHorizonDays are capped.
func (g *Generator) AvailableSlots(ctx context.Context, trainerID, serviceID string, horizonDays int) (map[calendar.Date][]calendar.TimeOfDay, error) {
	began := time.Now()
	if horizonDays <= 0 {
		horizonDays = g.cfg.HorizonDays
	}
	horizonDays = min(horizonDays, MaxHorizonDays)

	plan, err := g.prepare(ctx, trainerID, serviceID)
	if err != nil {
		return nil, err
	}

	out := map[calendar.Date][]calendar.TimeOfDay{}
	total := 0
	today := g.Today()
	for i := 1; i <= horizonDays; i++ {
		date := today.AddDays(i)
		if slots := plan.freeStarts(date, time.Time{}); len(slots) > 0 {
			out[date] = slots
			total += len(slots)
		}
	}
	g.obs.SlotsGenerated(ctx, trainerID, horizonDays, total, time.Since(began))
	return out, nil
}

// SlotsForDate lists free slot starts on a single date. Today is allowed, but only starts
// strictly after the current time are returned. Past dates yield nothing.
func (g *Generator) SlotsForDate(ctx context.Context, trainerID, serviceID string, date calendar.Date) ([]calendar.TimeOfDay, error) {
	began := time.Now()
	today := g.Today()
	if date.Before(today) {
		return []calendar.TimeOfDay{}, nil
	}

	plan, err := g.prepare(ctx, trainerID, serviceID)
	if err != nil {
		return nil, err
	}

	var after time.Time
	if date == today {
		after = g.cfg.Now()
	}
	slots := plan.freeStarts(date, after)
	if slots == nil {
		slots = []calendar.TimeOfDay{}
	}
	g.obs.SlotsGenerated(ctx, trainerID, 1, len(slots), time.Since(began))
	return slots, nil
}

// SortedDates returns the keys of a slot map in calendar order.
func SortedDates(m map[calendar.Date][]calendar.TimeOfDay) []calendar.Date {
	dates := make([]calendar.Date, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b calendar.Date) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
	return dates
}

// plan holds everything loaded once per request.
type plan struct {
	byDay    [7][]model.AvailabilityWindow
	duration int
	step     int
	loc      *time.Location
	snap     *conflict.Snapshot
	filter   conflict.Filter
}

func (g *Generator) prepare(ctx context.Context, trainerID, serviceID string) (*plan, error) {
	svc, err := g.services.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrTrainerOrServiceNotFound
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.IsActive || svc.DurationMinutes <= 0 {
		return nil, model.ErrTrainerOrServiceNotFound
	}

	windows, err := g.windows.ListActiveWindows(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}
	snap, err := g.snaps.Load(ctx, trainerID)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	p := &plan{
		duration: svc.DurationMinutes,
		step:     g.cfg.StepMinutes,
		loc:      g.cfg.Location,
		snap:     snap,
	}
	if !g.cfg.PendingBlocks {
		p.filter = conflict.Filter{Statuses: []model.Status{model.StatusApproved}}
	}
	for _, w := range windows {
		if !w.IsActive || w.Validate() != nil {
			continue
		}
		p.byDay[w.DayOfWeek] = append(p.byDay[w.DayOfWeek], w)
	}
	return p, nil
}

// freeStarts unions the candidate starts of every window on date's weekday, drops duplicates
// and keeps the conflict-free ones. A non-zero after also drops starts not after it.
func (p *plan) freeStarts(date calendar.Date, after time.Time) []calendar.TimeOfDay {
	windows := p.byDay[date.Weekday()]
	if len(windows) == 0 {
		return nil
	}

	var candidates []calendar.TimeOfDay
	for _, w := range windows {
		candidates = append(candidates, w.ContainsDuration(p.duration, p.step)...)
	}
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	var free []calendar.TimeOfDay
	for _, start := range candidates {
		begin := date.At(start, p.loc)
		if !after.IsZero() && !begin.After(after) {
			continue
		}
		candidate := calendar.NewInterval(begin, time.Duration(p.duration)*time.Minute)
		if p.snap.Free(candidate, p.filter) {
			free = append(free, start)
		}
	}
	return free
}
