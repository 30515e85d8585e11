package booking

import (
	"time"
)

// Slot is a discrete (date, time) booking opportunity for one doctor. Date and Time are opaque
// tokens compared by exact string equality.
type Slot struct {
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Available bool       `json:"available"`
	ClaimedAt *time.Time `json:"-"`
}

type Doctor struct {
	ID             string
	Name           string
	Specialization string
	Availability   []Slot
}

// DoctorSelector identifies a doctor by id, by name, or both. The id wins when it resolves.
type DoctorSelector struct {
	ID   string
	Name string
}

func (s DoctorSelector) Empty() bool {
	return s.ID == "" && s.Name == ""
}

type Appointment struct {
	ID           string
	DoctorID     string
	DoctorName   string
	Date         string
	Time         string
	PatientEmail string
	CreatedAt    time.Time
}

// BookingRequest is produced by the dialogue/UI layer once the patient confirmed every field.
type BookingRequest struct {
	Doctor       DoctorSelector
	Date         string
	Time         string
	PatientEmail string
}

type AppointmentFilter struct {
	DoctorID     string
	PatientEmail string
	Limit        int
	Offset       int
}

// ClaimedSlot is a slot that has already been flipped to unavailable.
type ClaimedSlot struct {
	DoctorID   string
	DoctorName string
	Date       string
	Time       string
	ClaimedAt  time.Time
}

type ClaimResult int

const (
	Claimed ClaimResult = iota + 1
	SlotUnavailable
	DoctorNotFound
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case SlotUnavailable:
		return "slot_unavailable"
	case DoctorNotFound:
		return "doctor_not_found"
	default:
		return "unknown"
	}
}

// Stage tracks how far a single booking attempt progressed.
type Stage string

const (
	StageInit                Stage = "init"
	StageDoctorResolved      Stage = "doctor_resolved"
	StageSlotClaimed         Stage = "slot_claimed"
	StageAppointmentRecorded Stage = "appointment_recorded"
	StageNotified            Stage = "notified"
	StageNotifyFailed        Stage = "notify_failed"
)

type Outcome string

const (
	OutcomeConfirmed             Outcome = "confirmed"
	OutcomeConfirmedNotifyFailed Outcome = "confirmed_notification_failed"
	OutcomeDoctorNotFound        Outcome = "doctor_not_found"
	OutcomeSlotUnavailable       Outcome = "slot_unavailable"
	OutcomeRecordingFailed       Outcome = "recording_failed"
	OutcomeStoreUnreachable      Outcome = "store_unreachable"
	OutcomeInvalidRequest        Outcome = "invalid_request"
)

type BookingResult struct {
	Appointment       *Appointment
	Doctor            *Doctor
	Stage             Stage
	Outcome           Outcome
	NotificationID    string
	NotificationError error
}

// Degraded reports a confirmed booking whose confirmation could not be delivered.
func (r *BookingResult) Degraded() bool {
	return r != nil && r.Outcome == OutcomeConfirmedNotifyFailed
}
