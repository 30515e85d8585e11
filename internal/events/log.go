package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the service log. Used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, key string, ev BookingEvent) error {
	p.logger.Info().
		Str("event", key).
		Str("appointment_id", ev.AppointmentID).
		Str("doctor_id", ev.DoctorID).
		Str("date", ev.Date).
		Str("time", ev.Time).
		Str("error", ev.Error).
		Msg("booking event")
	return nil
}
