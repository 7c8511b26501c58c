package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

func TestRecorderCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := NewMetrics()
	r := New(logger, m)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	cand := calendar.NewInterval(start, 30*time.Minute)
	appt := model.Appointment{ID: "a1", Status: model.StatusApproved, Start: start}

	r.CheckStarted(ctx, "t1", cand)
	r.CollisionFound(ctx, "t1", cand, appt)
	r.FallbackApplied(ctx, appt, start.Add(time.Hour), "service_lookup_failed")
	r.TransitionApplied(ctx, appt, model.StatusPending, model.StatusApproved)
	r.TransitionRejected(ctx, "a1", "approve", errors.New("nope"))
	r.SlotsGenerated(ctx, "t1", 3, 12, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collisions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("service_lookup_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("approve")))
	assert.Contains(t, buf.String(), "data integrity fallback applied")
	assert.Contains(t, buf.String(), `"appointment_id":"a1"`)

	rw := httptest.NewRecorder()
	m.Handler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), "fitbook_scheduling_conflict_checks_total 1")
}

func TestRecorderWithoutMetrics(t *testing.T) {
	r := New(nil, nil)
	assert.NotPanics(t, func() {
		r.CheckStarted(context.Background(), "t1", calendar.Interval{})
		r.SlotsGenerated(context.Background(), "t1", 0, 0, 0)
	})
	var _ Observer = Nop{}
	var _ Observer = r
}
