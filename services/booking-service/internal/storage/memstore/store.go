// Package memstore is an in-process implementation of the booking repositories, used by the
// dev server when no DATABASE_URL is configured and by package tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
)

type Store struct {
	mu       sync.RWMutex
	trainers map[string]string
	services map[string]model.Service
	windows  map[string][]model.AvailabilityWindow
	appts    map[string]model.Appointment
	events   []outbox.Event
	now      func() time.Time

	// BeforeWrite runs before each version-checked write, outside the lock. Tests use it to
	// simulate a concurrent writer.
	BeforeWrite func(id string)
}

func New() *Store {
	return &Store{
		trainers: map[string]string{},
		services: map[string]model.Service{},
		windows:  map[string][]model.AvailabilityWindow{},
		appts:    map[string]model.Appointment{},
		now:      time.Now,
	}
}

func (s *Store) AddTrainer(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainers[id] = name
}

func (s *Store) AddService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) AddWindow(w model.AvailabilityWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[w.TrainerID] = append(s.windows[w.TrainerID], w)
	return nil
}

// Put stores appt as-is, bypassing the outbox. Version defaults to 1.
func (s *Store) Put(appt model.Appointment) {
	if appt.Version == 0 {
		appt.Version = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[appt.ID] = appt
}

// Touch bumps the stored version as another writer would.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.appts[id]; ok {
		a.Version++
		s.appts[id] = a
	}
}

// Events returns the outbox events recorded so far.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]outbox.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) TrainerExists(_ context.Context, trainerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.trainers[trainerID]
	return ok, nil
}

func (s *Store) GetService(_ context.Context, id string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("service %s: %w", id, model.ErrNotFound)
	}
	return svc, nil
}

func (s *Store) ListActiveWindows(_ context.Context, trainerID string) ([]model.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AvailabilityWindow
	for _, w := range s.windows[trainerID] {
		if w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) ListActiveAppointments(_ context.Context, trainerID string) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.TrainerID == trainerID && a.Status.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) ListAppointments(_ context.Context, f model.ListFilter) ([]model.Appointment, error) {
	s.mu.RLock()
	var out []model.Appointment
	for _, a := range s.appts {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	model.SortAppointments(out, f.Sort, f.Desc)
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
	}
	return a, nil
}

// Save inserts a new appointment. An approved one is admitted only if no approved peer
// overlaps it, checked under the same lock as the insert.
func (s *Store) Save(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.beforeWrite(appt.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trainers[appt.TrainerID]; !ok {
		return model.Appointment{}, model.ErrTrainerOrServiceNotFound
	}
	if _, ok := s.services[appt.ServiceID]; !ok {
		return model.Appointment{}, model.ErrTrainerOrServiceNotFound
	}
	if _, exists := s.appts[appt.ID]; exists {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", appt.ID, model.ErrDuplicateAppointment)
	}
	if appt.Status == model.StatusApproved {
		if collisions := s.approvedOverlapsLocked(appt.TrainerID, appt.ID, appt.Interval()); len(collisions) > 0 {
			return model.Appointment{}, &model.ConflictError{Collisions: collisions}
		}
	}
	appt.Version = 1
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = s.now()
	}
	if err := s.emitLocked(appt, outbox.StatusKind(appt.Status)); err != nil {
		return model.Appointment{}, err
	}
	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, expectedVersion int64, status model.Status, note string) (model.Appointment, error) {
	s.beforeWrite(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.checkVersionLocked(id, expectedVersion)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = status
	a.Note = note
	a.Version++
	if err := s.emitLocked(a, outbox.StatusKind(status)); err != nil {
		return model.Appointment{}, err
	}
	s.appts[id] = a
	return a, nil
}

func (s *Store) ApproveIfFree(_ context.Context, id string, expectedVersion int64, own calendar.Interval, note string) (model.Appointment, error) {
	s.beforeWrite(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.checkVersionLocked(id, expectedVersion)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Status != model.StatusPending {
		return model.Appointment{}, model.ErrAlreadyResolved
	}
	if collisions := s.approvedOverlapsLocked(a.TrainerID, id, own); len(collisions) > 0 {
		return model.Appointment{}, &model.ConflictError{Collisions: collisions}
	}
	a.Status = model.StatusApproved
	a.Note = note
	a.Version++
	if err := s.emitLocked(a, outbox.StatusKind(a.Status)); err != nil {
		return model.Appointment{}, err
	}
	s.appts[id] = a
	return a, nil
}

func (s *Store) UpdateSchedule(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.beforeWrite(appt.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.checkVersionLocked(appt.ID, appt.Version)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Status != model.StatusPending {
		return model.Appointment{}, model.ErrNotEditable
	}
	if _, ok := s.services[appt.ServiceID]; !ok {
		return model.Appointment{}, model.ErrTrainerOrServiceNotFound
	}
	a.ServiceID = appt.ServiceID
	a.Start = appt.Start
	a.End = appt.End
	a.Note = appt.Note
	a.Version++
	if err := s.emitLocked(a, outbox.KindRescheduled); err != nil {
		return model.Appointment{}, err
	}
	s.appts[a.ID] = a
	return a, nil
}

func (s *Store) Delete(_ context.Context, id string, expectedVersion int64) error {
	s.beforeWrite(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.checkVersionLocked(id, expectedVersion)
	if err != nil {
		return err
	}
	if !a.Status.Deletable() {
		return model.ErrDeleteActive
	}
	if err := s.emitLocked(a, outbox.KindDeleted); err != nil {
		return err
	}
	delete(s.appts, id)
	return nil
}

func (s *Store) Stats(_ context.Context, now time.Time) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := model.NewStats()
	for _, a := range s.appts {
		stats.Add(a, now)
	}
	return stats, nil
}

// BackfillEndTimes mirrors the SQL repair: rows whose service is unknown are left alone.
func (s *Store) BackfillEndTimes(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.appts {
		if a.HasEnd() {
			continue
		}
		svc, ok := s.services[a.ServiceID]
		if !ok {
			continue
		}
		a.End = a.Start.Add(svc.Duration())
		a.Version++
		s.appts[id] = a
		n++
	}
	return n, nil
}

func (s *Store) beforeWrite(id string) {
	if s.BeforeWrite != nil {
		s.BeforeWrite(id)
	}
}

func (s *Store) checkVersionLocked(id string, expectedVersion int64) (model.Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
	}
	if a.Version != expectedVersion {
		return model.Appointment{}, model.ErrConcurrentModification
	}
	return a, nil
}

func (s *Store) approvedOverlapsLocked(trainerID, excludeID string, iv calendar.Interval) []model.Appointment {
	var out []model.Appointment
	for _, p := range s.appts {
		if p.ID == excludeID || p.TrainerID != trainerID || p.Status != model.StatusApproved {
			continue
		}
		if calendar.Overlaps(p.EffectiveInterval(s.services[p.ServiceID].Duration()), iv) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (s *Store) emitLocked(appt model.Appointment, kind outbox.Kind) error {
	evt, err := outbox.AppointmentEvent(appt, kind, s.now())
	if err != nil {
		return err
	}
	s.events = append(s.events, evt)
	return nil
}
