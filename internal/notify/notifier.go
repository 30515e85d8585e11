package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
)

// ConfirmationNotifier emails the patient once an appointment is recorded.
type ConfirmationNotifier struct {
	sender       EmailSender
	clinicName   string
	contactEmail string
	logger       zerolog.Logger
}

func NewConfirmationNotifier(sender EmailSender, clinicName, contactEmail string, logger zerolog.Logger) *ConfirmationNotifier {
	if clinicName == "" {
		clinicName = DefaultClinicName
	}
	return &ConfirmationNotifier{
		sender:       sender,
		clinicName:   clinicName,
		contactEmail: contactEmail,
		logger:       logger,
	}
}

// NotifyBooking implements booking.Notifier.
func (n *ConfirmationNotifier) NotifyBooking(ctx context.Context, appt booking.Appointment) (string, error) {
	if n.sender == nil {
		return "", errors.New("notify: no email sender configured")
	}
	if appt.PatientEmail == "" {
		return "", errors.New("notify: appointment has no patient email")
	}

	msg, err := RenderConfirmation(appt.PatientEmail, ConfirmationData{
		ClinicName:   n.clinicName,
		ContactEmail: n.contactEmail,
		DoctorName:   appt.DoctorName,
		Date:         appt.Date,
		Time:         appt.Time,
	})
	if err != nil {
		return "", fmt.Errorf("notify: %w", err)
	}

	id, err := n.sender.Send(ctx, msg)
	if err != nil {
		return "", err
	}

	n.logger.Debug().Str("appointment_id", appt.ID).Str("message_id", id).Msg("booking confirmation sent")
	return id, nil
}

var _ booking.Notifier = (*ConfirmationNotifier)(nil)
