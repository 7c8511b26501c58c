package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage/memstore"
)

// Sunday 2026-03-01 10:00 UTC; the following Monday is 2026-03-02.
var (
	fixedNow   = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	nextMonday = calendar.Date{Year: 2026, Month: time.March, Day: 2}
)

func hhmm(s string) calendar.TimeOfDay {
	t, err := calendar.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(id string, day time.Weekday, start, end string) model.AvailabilityWindow {
	return model.AvailabilityWindow{ID: id, TrainerID: "t1", DayOfWeek: day, Start: hhmm(start), End: hhmm(end), IsActive: true}
}

type fixture struct {
	store    *memstore.Store
	detector *conflict.Detector
}

func newFixture(t *testing.T, windows ...model.AvailabilityWindow) fixture {
	t.Helper()
	s := memstore.New()
	s.AddTrainer("t1", "Ayla")
	s.AddService(model.Service{ID: "s30", Name: "Session", DurationMinutes: 30, IsActive: true})
	s.AddService(model.Service{ID: "s60", Name: "Long session", DurationMinutes: 60, IsActive: true})
	s.AddService(model.Service{ID: "off", Name: "Retired", DurationMinutes: 30, IsActive: false})
	for _, w := range windows {
		require.NoError(t, s.AddWindow(w))
	}
	return fixture{store: s, detector: conflict.NewDetector(s, s, nil)}
}

func (f fixture) generator(pendingBlocks bool) *Generator {
	return NewGenerator(f.store, f.store, f.detector, nil, Config{
		StepMinutes:   30,
		PendingBlocks: pendingBlocks,
		Location:      time.UTC,
		Now:           func() time.Time { return fixedNow },
	})
}

func (f fixture) book(id string, status model.Status, date calendar.Date, start string, minutes int) {
	begin := date.At(hhmm(start), time.UTC)
	f.store.Put(model.Appointment{
		ID: id, TrainerID: "t1", ServiceID: "s30",
		Start: begin, End: begin.Add(time.Duration(minutes) * time.Minute),
		Status: status,
	})
}

func TestMondayWindowScenario(t *testing.T) {
	f := newFixture(t, window("w1", time.Monday, "09:00", "10:00"))
	ctx := context.Background()

	slots, err := f.generator(true).AvailableSlots(ctx, "t1", "s30", 7)
	require.NoError(t, err)
	assert.Equal(t, []calendar.TimeOfDay{hhmm("09:00"), hhmm("09:30")}, slots[nextMonday])
	assert.Len(t, slots, 1)

	f.book("p1", model.StatusPending, nextMonday, "09:00", 30)
	slots, err = f.generator(true).AvailableSlots(ctx, "t1", "s30", 7)
	require.NoError(t, err)
	assert.Equal(t, []calendar.TimeOfDay{hhmm("09:30")}, slots[nextMonday])

	slots, err = f.generator(false).AvailableSlots(ctx, "t1", "s30", 7)
	require.NoError(t, err)
	assert.Equal(t, []calendar.TimeOfDay{hhmm("09:00"), hhmm("09:30")}, slots[nextMonday])
}

func TestHorizonStartsTomorrowAndIsCapped(t *testing.T) {
	f := newFixture(t,
		window("sun", time.Sunday, "12:00", "13:00"),
		window("mon", time.Monday, "12:00", "13:00"),
	)
	slots, err := f.generator(true).AvailableSlots(context.Background(), "t1", "s60", 1)
	require.NoError(t, err)
	// Today is Sunday and is never part of the horizon.
	require.Len(t, slots, 1)
	assert.Contains(t, slots, nextMonday)

	slots, err = f.generator(true).AvailableSlots(context.Background(), "t1", "s60", 365)
	require.NoError(t, err)
	last := SortedDates(slots)[len(slots)-1]
	assert.False(t, calendar.DateOf(fixedNow).AddDays(MaxHorizonDays).Before(last))
}

func TestDatesWithoutSlotsAreOmitted(t *testing.T) {
	f := newFixture(t, window("w1", time.Monday, "09:00", "09:30"))
	slots, err := f.generator(true).AvailableSlots(context.Background(), "t1", "s60", 14)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestOverlappingWindowsAreUnioned(t *testing.T) {
	f := newFixture(t,
		window("a", time.Monday, "09:00", "11:00"),
		window("b", time.Monday, "10:00", "12:00"),
	)
	slots, err := f.generator(true).SlotsForDate(context.Background(), "t1", "s60", nextMonday)
	require.NoError(t, err)
	assert.Equal(t, []calendar.TimeOfDay{
		hhmm("09:00"), hhmm("09:30"), hhmm("10:00"), hhmm("10:30"), hhmm("11:00"),
	}, slots)
}

func TestSlotsForTodayOnlyAfterNow(t *testing.T) {
	f := newFixture(t, window("w1", time.Sunday, "09:00", "12:00"))
	today := calendar.DateOf(fixedNow)

	slots, err := f.generator(true).SlotsForDate(context.Background(), "t1", "s30", today)
	require.NoError(t, err)
	// 10:00 equals now and is excluded.
	assert.Equal(t, []calendar.TimeOfDay{hhmm("10:30"), hhmm("11:00"), hhmm("11:30")}, slots)

	past, err := f.generator(true).SlotsForDate(context.Background(), "t1", "s30", today.AddDays(-7))
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestUnknownOrInactiveService(t *testing.T) {
	f := newFixture(t, window("w1", time.Monday, "09:00", "10:00"))
	_, err := f.generator(true).AvailableSlots(context.Background(), "t1", "missing", 7)
	assert.ErrorIs(t, err, model.ErrTrainerOrServiceNotFound)

	_, err = f.generator(true).SlotsForDate(context.Background(), "t1", "off", nextMonday)
	assert.ErrorIs(t, err, model.ErrTrainerOrServiceNotFound)
}

func TestGeneratedSlotsPassTheDetector(t *testing.T) {
	f := newFixture(t, window("w1", time.Monday, "08:00", "12:00"))
	f.book("a1", model.StatusApproved, nextMonday, "09:15", 45)
	f.book("p1", model.StatusPending, nextMonday, "11:00", 30)
	f.book("c1", model.StatusCancelled, nextMonday, "08:00", 60)
	ctx := context.Background()

	slots, err := f.generator(true).SlotsForDate(ctx, "t1", "s30", nextMonday)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Contains(t, slots, hhmm("08:00"))
	for _, s := range slots {
		begin := nextMonday.At(s, time.UTC)
		ok, _, err := f.detector.IsAvailable(ctx, "t1", calendar.NewInterval(begin, 30*time.Minute), nil)
		require.NoError(t, err)
		assert.True(t, ok, "slot %s", s)
	}
}

func TestRoundTripBookingRemovesApprovedSlot(t *testing.T) {
	f := newFixture(t, window("w1", time.Monday, "09:00", "11:00"))
	ctx := context.Background()

	before, err := f.generator(false).SlotsForDate(ctx, "t1", "s30", nextMonday)
	require.NoError(t, err)
	first := before[0]

	f.book("p1", model.StatusPending, nextMonday, first.String(), 30)
	pending, err := f.generator(false).SlotsForDate(ctx, "t1", "s30", nextMonday)
	require.NoError(t, err)
	assert.Contains(t, pending, first)

	_, err = f.store.UpdateStatus(ctx, "p1", 1, model.StatusApproved, "")
	require.NoError(t, err)
	after, err := f.generator(false).SlotsForDate(ctx, "t1", "s30", nextMonday)
	require.NoError(t, err)
	assert.NotContains(t, after, first)
	assert.Len(t, after, len(before)-1)
}

func TestWeeklySchedule(t *testing.T) {
	f := newFixture(t,
		window("b", time.Monday, "14:00", "18:00"),
		window("a", time.Monday, "08:00", "12:00"),
		window("c", time.Wednesday, "10:00", "16:00"),
	)
	days, err := f.generator(true).WeeklySchedule(context.Background(), "t1", calendar.Turkish)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, time.Monday, days[0].Weekday)
	assert.Equal(t, "Pazartesi", days[0].Name)
	require.Len(t, days[0].Windows, 2)
	assert.Equal(t, hhmm("08:00"), days[0].Windows[0].Start)
	assert.Empty(t, days[1].Windows)
	assert.Equal(t, time.Sunday, days[6].Weekday)
}

func TestSlotsOnDaylightSavingChangeover(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable:", err)
	}
	// Clocks jump from 02:00 to 03:00 on Sunday 2026-03-08.
	changeover := calendar.Date{Year: 2026, Month: time.March, Day: 8}
	f := newFixture(t, window("sun", time.Sunday, "09:00", "10:00"))
	begin := time.Date(2026, 3, 8, 9, 0, 0, 0, ny)
	f.store.Put(model.Appointment{
		ID: "a1", TrainerID: "t1", ServiceID: "s30",
		Start: begin, End: begin.Add(30 * time.Minute),
		Status: model.StatusApproved,
	})

	g := NewGenerator(f.store, f.store, f.detector, nil, Config{
		StepMinutes:   30,
		PendingBlocks: true,
		Location:      ny,
		Now:           func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, ny) },
	})
	slots, err := g.SlotsForDate(context.Background(), "t1", "s30", changeover)
	require.NoError(t, err)
	assert.Equal(t, []calendar.TimeOfDay{hhmm("09:30")}, slots)
}
