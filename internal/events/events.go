package events

import (
	"context"
	"time"
)

const (
	RKBookingConfirmed          = "booking.confirmed"
	RKBookingNotificationFailed = "booking.notification_failed"
	RKBookingRecordingFailed    = "booking.recording_failed"
)

// BookingEvent carries enough of a booking attempt for downstream consumers
// (audit, operator alerts) without another store round trip.
type BookingEvent struct {
	AppointmentID string    `json:"appointment_id,omitempty"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	PatientEmail  string    `json:"patient_email"`
	Error         string    `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher is best-effort: callers log a failed publish and move on.
type Publisher interface {
	Publish(ctx context.Context, key string, ev BookingEvent) error
}
