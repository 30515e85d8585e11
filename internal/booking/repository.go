package booking

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrSlotUnavailable  = errors.New("selected slot is no longer available")
	ErrRecordingFailed  = errors.New("slot claimed but appointment could not be recorded")
	ErrStoreUnreachable = errors.New("availability store unreachable")
	ErrInvalidRequest   = errors.New("invalid booking request")
)

// AvailabilityStore holds doctors and their slots. ClaimSlot is the only operation that
// mutates a slot's availability flag and must be a single atomic conditional update.
type AvailabilityStore interface {
	ListDoctors(ctx context.Context, specialization string) ([]Doctor, error)
	GetDoctor(ctx context.Context, sel DoctorSelector) (*Doctor, error)
	GetAvailableSlots(ctx context.Context, doctorID string) ([]Slot, error)

	ClaimSlot(ctx context.Context, doctorID, date, time string) (ClaimResult, error)

	// For reconciliation
	ListClaimedSlots(ctx context.Context, claimedBefore time.Time) ([]ClaimedSlot, error)
}

// Ledger is the insert-only log of confirmed appointments. It never enforces uniqueness.
type Ledger interface {
	RecordAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	HasAppointment(ctx context.Context, doctorID, date, time string) (bool, error)
}

// Provisioner creates doctors with their initial slots. Used by seeding and tests only.
type Provisioner interface {
	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	DoctorNameExists(ctx context.Context, name string) (bool, error)
}

// Notifier delivers the booking confirmation. Best-effort: a failure degrades the booking
// outcome but never undoes it.
type Notifier interface {
	NotifyBooking(ctx context.Context, appt Appointment) (receiptID string, err error)
}

// RecordingError is returned when the slot was claimed but the ledger write failed.
// The slot stays claimed and needs operator reconciliation.
type RecordingError struct {
	DoctorID string
	Date     string
	Time     string
	Err      error
}

func (e *RecordingError) Error() string {
	return "slot " + e.DoctorID + "/" + e.Date + "/" + e.Time + " claimed but not recorded: " + e.Err.Error()
}

func (e *RecordingError) Is(target error) bool {
	return target == ErrRecordingFailed
}

func (e *RecordingError) Unwrap() error {
	return e.Err
}
