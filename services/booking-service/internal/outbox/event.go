package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

const AggregateAppointment = "appointment"

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type AppointmentPayload struct {
	AppointmentID string    `json:"appointment_id"`
	TrainerID     string    `json:"trainer_id"`
	ServiceID     string    `json:"service_id"`
	MemberID      string    `json:"member_id,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Status        string    `json:"status"`
	Note          string    `json:"note,omitempty"`
	Version       int64     `json:"version"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Kind names what happened to the appointment. Status changes use the new status.
type Kind string

const (
	KindRescheduled Kind = "rescheduled"
	KindDeleted     Kind = "deleted"
)

func StatusKind(s model.Status) Kind {
	return Kind(s)
}

// EventType returns booking.appointment.<kind>.v1.
func EventType(k Kind) string {
	return fmt.Sprintf("booking.appointment.%s.v1", k)
}

func AppointmentEvent(appt model.Appointment, kind Kind, at time.Time) (Event, error) {
	payload, err := json.Marshal(AppointmentPayload{
		AppointmentID: appt.ID,
		TrainerID:     appt.TrainerID,
		ServiceID:     appt.ServiceID,
		MemberID:      appt.MemberID,
		Start:         appt.Start.UTC(),
		End:           appt.End.UTC(),
		Status:        appt.Status.String(),
		Note:          appt.Note,
		Version:       appt.Version,
		OccurredAt:    at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     EventType(kind),
		Payload:       payload,
	}, nil
}
