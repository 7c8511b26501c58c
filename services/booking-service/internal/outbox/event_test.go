package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/fitbook/libs/kafkax"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

func TestAppointmentEvent(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID:        "a1",
		TrainerID: "t1",
		ServiceID: "s1",
		Start:     start,
		End:       start.Add(time.Hour),
		Status:    model.StatusApproved,
		Version:   2,
	}

	evt, err := AppointmentEvent(appt, StatusKind(appt.Status), start)
	require.NoError(t, err)
	assert.Equal(t, "booking.appointment.approved.v1", evt.EventType)
	assert.Equal(t, AggregateAppointment, evt.AggregateType)
	assert.Equal(t, "a1", evt.AggregateID)
	assert.NotEmpty(t, evt.EventID)

	var p AppointmentPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, "approved", p.Status)
	assert.Equal(t, int64(2), p.Version)
	assert.True(t, p.End.Equal(start.Add(time.Hour)))
}

func TestEventTypeNames(t *testing.T) {
	assert.Equal(t, "booking.appointment.no_show.v1", EventType(StatusKind(model.StatusNoShow)))
	assert.Equal(t, "booking.appointment.deleted.v1", EventType(KindDeleted))
	assert.Equal(t, "booking.appointment.rescheduled.v1", EventType(KindRescheduled))
}

func TestMessageCarriesEventHeaders(t *testing.T) {
	msg := Message(context.Background(), Record{
		EventID:     "e1",
		AggregateID: "a1",
		EventType:   "booking.appointment.pending.v1",
		Payload:     []byte(`{}`),
	})
	assert.Equal(t, "booking.appointment.pending.v1", msg.Topic)
	assert.Equal(t, []byte("a1"), msg.Key)
	assert.Equal(t, "e1", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID))
	assert.Equal(t, "booking.appointment.pending.v1", kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType))
}

func TestPublisherDisabledWithoutBrokers(t *testing.T) {
	p := NewPublisher(nil, NewRepository(), slog.New(slog.DiscardHandler), PublisherConfig{})
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Run(context.Background()))
}
