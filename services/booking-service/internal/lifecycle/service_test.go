package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage/memstore"
)

var (
	now     = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	morning = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

type harness struct {
	store *memstore.Store
	svc   *Service
}

func newHarness(t *testing.T) harness {
	t.Helper()
	s := memstore.New()
	s.AddTrainer("t1", "Ayla")
	s.AddService(model.Service{ID: "s45", Name: "Assessment", DurationMinutes: 45, IsActive: true})
	s.AddService(model.Service{ID: "s60", Name: "Session", DurationMinutes: 60, IsActive: true})
	s.AddService(model.Service{ID: "retired", Name: "Retired", DurationMinutes: 30, IsActive: false})

	n := 0
	svc := New(s, s, conflict.NewDetector(s, s, nil), nil,
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("appt-%d", n) }),
	)
	return harness{store: s, svc: svc}
}

func (h harness) put(id string, status model.Status, start time.Time, minutes int) {
	h.store.Put(model.Appointment{
		ID: id, TrainerID: "t1", ServiceID: "s60", MemberID: "m1",
		Start: start, End: start.Add(time.Duration(minutes) * time.Minute),
		Status: status,
	})
}

func TestCreateComputesEndAndStartsPending(t *testing.T) {
	h := newHarness(t)
	appt, err := h.svc.Create(context.Background(), BookingRequest{TrainerID: "t1", ServiceID: "s45", MemberID: "m1", Start: morning})
	require.NoError(t, err)

	assert.Equal(t, "appt-1", appt.ID)
	assert.Equal(t, model.StatusPending, appt.Status)
	assert.True(t, appt.End.Equal(morning.Add(45*time.Minute)))
	assert.Equal(t, int64(1), appt.Version)

	events := h.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.appointment.pending.v1", events[0].EventType)
}

func TestCreateRejectsCollisions(t *testing.T) {
	for _, st := range []model.Status{model.StatusPending, model.StatusApproved} {
		t.Run(st.String(), func(t *testing.T) {
			h := newHarness(t)
			h.put("peer", st, morning.Add(30*time.Minute), 60)

			_, err := h.svc.Create(context.Background(), BookingRequest{TrainerID: "t1", ServiceID: "s45", Start: morning})
			require.ErrorIs(t, err, model.ErrSchedulingConflict)
			collisions := model.Collisions(err)
			require.Len(t, collisions, 1)
			assert.Equal(t, "peer", collisions[0].ID)
		})
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, BookingRequest{TrainerID: "t1", ServiceID: "s45"})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = h.svc.Create(ctx, BookingRequest{TrainerID: "t1", ServiceID: "s45", Start: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, model.ErrStartInPast)

	_, err = h.svc.Create(ctx, BookingRequest{TrainerID: "ghost", ServiceID: "s45", Start: morning})
	assert.ErrorIs(t, err, model.ErrTrainerOrServiceNotFound)

	_, err = h.svc.Create(ctx, BookingRequest{TrainerID: "t1", ServiceID: "missing", Start: morning})
	assert.ErrorIs(t, err, model.ErrTrainerOrServiceNotFound)

	_, err = h.svc.Create(ctx, BookingRequest{TrainerID: "t1", ServiceID: "retired", Start: morning})
	assert.ErrorIs(t, err, model.ErrTrainerOrServiceNotFound)
}

func TestApproveBlockedOnlyByApprovedPeers(t *testing.T) {
	t.Run("approved peer", func(t *testing.T) {
		h := newHarness(t)
		h.put("mine", model.StatusPending, morning, 60)
		h.put("peer", model.StatusApproved, morning.Add(30*time.Minute), 60)

		_, err := h.svc.Approve(context.Background(), "mine")
		require.ErrorIs(t, err, model.ErrSchedulingConflict)
		assert.Equal(t, "peer", model.Collisions(err)[0].ID)

		got, err := h.store.GetAppointment(context.Background(), "mine")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
	})

	t.Run("pending peer", func(t *testing.T) {
		h := newHarness(t)
		h.put("mine", model.StatusPending, morning, 60)
		h.put("peer", model.StatusPending, morning.Add(30*time.Minute), 60)

		appt, err := h.svc.Approve(context.Background(), "mine")
		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, appt.Status)

		_, err = h.svc.Approve(context.Background(), "peer")
		assert.ErrorIs(t, err, model.ErrSchedulingConflict)
	})
}

func TestApproveRequiresPending(t *testing.T) {
	h := newHarness(t)
	h.put("a", model.StatusApproved, morning, 60)
	_, err := h.svc.Approve(context.Background(), "a")
	assert.ErrorIs(t, err, model.ErrAlreadyResolved)

	_, err = h.svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApproveLegacyAppointmentUsesFallbackEnd(t *testing.T) {
	h := newHarness(t)
	h.store.Put(model.Appointment{ID: "legacy", TrainerID: "t1", ServiceID: "s45", Start: morning, Status: model.StatusPending})
	h.put("peer", model.StatusApproved, morning.Add(40*time.Minute), 30)

	_, err := h.svc.Approve(context.Background(), "legacy")
	assert.ErrorIs(t, err, model.ErrSchedulingConflict)
}

func TestRejectAndCancelNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.put("r", model.StatusPending, morning, 60)
	h.put("c", model.StatusApproved, morning.Add(2*time.Hour), 60)
	h.put("quiet", model.StatusPending, morning.Add(4*time.Hour), 60)

	rejected, err := h.svc.Reject(ctx, "r", "trainer unavailable")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "Rejection reason: trainer unavailable", rejected.Note)

	cancelled, err := h.svc.Cancel(ctx, "c", "member request")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cancellation reason: member request", cancelled.Note)

	quiet, err := h.svc.Cancel(ctx, "quiet", "")
	require.NoError(t, err)
	assert.Empty(t, quiet.Note)
}

func TestCompletedIsFinalForRejectAndCancel(t *testing.T) {
	h := newHarness(t)
	h.put("done", model.StatusCompleted, morning, 60)

	_, err := h.svc.Reject(context.Background(), "done", "x")
	assert.ErrorIs(t, err, model.ErrAlreadyCompleted)
	_, err = h.svc.Cancel(context.Background(), "done", "x")
	assert.ErrorIs(t, err, model.ErrAlreadyCompleted)
}

func TestCompleteAndNoShowRequireApproved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.put("p", model.StatusPending, morning, 60)
	h.put("a1", model.StatusApproved, morning.Add(2*time.Hour), 60)
	h.put("a2", model.StatusApproved, morning.Add(4*time.Hour), 60)

	_, err := h.svc.Complete(ctx, "p")
	assert.ErrorIs(t, err, model.ErrNotApproved)
	_, err = h.svc.MarkNoShow(ctx, "p")
	assert.ErrorIs(t, err, model.ErrNotApproved)

	done, err := h.svc.Complete(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	missed, err := h.svc.MarkNoShow(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, missed.Status)
}

func TestDeleteOnlyResolvedAppointments(t *testing.T) {
	for i, st := range allStatuses {
		t.Run(st.String(), func(t *testing.T) {
			h := newHarness(t)
			id := fmt.Sprintf("a%d", i)
			h.put(id, st, morning, 60)

			err := h.svc.Delete(context.Background(), id)
			if st.Active() {
				require.ErrorIs(t, err, model.ErrDeleteActive)
				_, getErr := h.store.GetAppointment(context.Background(), id)
				assert.NoError(t, getErr)
				return
			}
			require.NoError(t, err)
			_, getErr := h.store.GetAppointment(context.Background(), id)
			assert.ErrorIs(t, getErr, model.ErrNotFound)
		})
	}
}

func TestConcurrentModificationRetriedOnce(t *testing.T) {
	h := newHarness(t)
	h.put("a", model.StatusPending, morning, 60)

	interfered := false
	h.store.BeforeWrite = func(id string) {
		if !interfered {
			interfered = true
			h.store.Touch(id)
		}
	}
	appt, err := h.svc.Approve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, appt.Status)
	assert.Equal(t, int64(3), appt.Version)
}

func TestConcurrentModificationSurfacesAfterRetry(t *testing.T) {
	h := newHarness(t)
	h.put("a", model.StatusPending, morning, 60)

	writes := 0
	h.store.BeforeWrite = func(id string) {
		writes++
		h.store.Touch(id)
	}
	_, err := h.svc.Reject(context.Background(), "a", "")
	assert.ErrorIs(t, err, model.ErrConcurrentModification)
	assert.Equal(t, 2, writes)
}

func TestEditReschedulesPendingWithSelfExclusion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.put("mine", model.StatusPending, morning, 60)
	h.put("other", model.StatusApproved, morning.Add(2*time.Hour), 60)

	moved, err := h.svc.Edit(ctx, "mine", EditRequest{Start: morning.Add(30 * time.Minute), ServiceID: "s45"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, moved.Status)
	assert.True(t, moved.End.Equal(morning.Add(75*time.Minute)))
	assert.Equal(t, "s45", moved.ServiceID)

	_, err = h.svc.Edit(ctx, "mine", EditRequest{Start: morning.Add(90 * time.Minute)})
	assert.ErrorIs(t, err, model.ErrSchedulingConflict)

	_, err = h.svc.Edit(ctx, "other", EditRequest{Start: morning.Add(5 * time.Hour)})
	assert.ErrorIs(t, err, model.ErrNotEditable)

	_, err = h.svc.Edit(ctx, "mine", EditRequest{Start: morning, MemberID: "someone-else"})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemberCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.put("a", model.StatusApproved, morning, 60)
	h.put("done", model.StatusCompleted, morning.Add(2*time.Hour), 60)

	_, err := h.svc.MemberCancel(ctx, "a", "intruder", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.svc.MemberCancel(ctx, "done", "m1", "")
	assert.ErrorIs(t, err, model.ErrNotCancellable)

	cancelled, err := h.svc.MemberCancel(ctx, "a", "m1", "sick")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cancellation reason: sick", cancelled.Note)
}

func TestOverrideApproveIgnoresPendingPeers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.put("pending", model.StatusPending, morning, 60)

	appt, err := h.svc.Override(ctx, BookingRequest{TrainerID: "t1", ServiceID: "s60", Start: morning}, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, appt.Status)

	_, err = h.svc.Override(ctx, BookingRequest{TrainerID: "t1", ServiceID: "s60", Start: morning.Add(30 * time.Minute)}, true)
	assert.ErrorIs(t, err, model.ErrSchedulingConflict)

	past, err := h.svc.Override(ctx, BookingRequest{TrainerID: "t1", ServiceID: "s60", Start: now.Add(-48 * time.Hour)}, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, past.Status)
}

func TestOverlappingApprovalsAdmitOnlyOne(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.put("a", model.StatusPending, morning, 60)
	h.put("b", model.StatusPending, morning.Add(30*time.Minute), 60)

	// "b" is approved after "a" passed its pre-check but before its write lands.
	raced := false
	h.store.BeforeWrite = func(id string) {
		if id != "a" || raced {
			return
		}
		raced = true
		_, err := h.svc.Approve(ctx, "b")
		require.NoError(t, err)
	}

	_, err := h.svc.Approve(ctx, "a")
	require.ErrorIs(t, err, model.ErrSchedulingConflict)
	collisions := model.Collisions(err)
	require.Len(t, collisions, 1)
	assert.Equal(t, "b", collisions[0].ID)

	a, err := h.store.GetAppointment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, a.Status)
	b, err := h.store.GetAppointment(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, b.Status)
}

func TestApprovedOverrideLosesToConcurrentApproval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.put("b", model.StatusPending, morning, 60)

	raced := false
	h.store.BeforeWrite = func(id string) {
		if id != "appt-1" || raced {
			return
		}
		raced = true
		_, err := h.svc.Approve(ctx, "b")
		require.NoError(t, err)
	}

	_, err := h.svc.Override(ctx, BookingRequest{TrainerID: "t1", ServiceID: "s60", Start: morning.Add(15 * time.Minute)}, true)
	require.ErrorIs(t, err, model.ErrSchedulingConflict)
	_, err = h.store.GetAppointment(ctx, "appt-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(ActionApprove, model.StatusPending))
	assert.False(t, Allowed(ActionApprove, model.StatusApproved))
	assert.True(t, Allowed(ActionCancel, model.StatusApproved))
	assert.False(t, Allowed(ActionCancel, model.StatusCompleted))
	assert.False(t, Allowed(Action("teleport"), model.StatusPending))

	assert.Equal(t, []Action{ActionApprove, ActionReject, ActionCancel}, AllowedActions(model.StatusPending))
	assert.Equal(t, []Action{ActionReject, ActionCancel, ActionComplete, ActionNoShow}, AllowedActions(model.StatusApproved))
	assert.Empty(t, AllowedActions(model.StatusCompleted))
}

var allStatuses = []model.Status{
	model.StatusPending, model.StatusApproved, model.StatusRejected,
	model.StatusCompleted, model.StatusCancelled, model.StatusNoShow,
}
