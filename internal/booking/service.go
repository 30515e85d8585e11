package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-slot-booking/internal/events"
	"github.com/hackgods/clinic-slot-booking/internal/metrics"
)

var tracer = otel.Tracer("github.com/hackgods/clinic-slot-booking/internal/booking")

type ServiceConfig struct {
	Store         AvailabilityStore
	Ledger        Ledger
	Notifier      Notifier
	Publisher     events.Publisher
	Metrics       *metrics.BookingMetrics
	Logger        zerolog.Logger
	ClaimTimeout  time.Duration
	// NotifyTimeout bounds the confirmation send. Zero means defaultNotifyTimeout.
	NotifyTimeout time.Duration
}

const defaultNotifyTimeout = 10 * time.Second

// Service is the booking orchestrator: resolve doctor, claim slot, record appointment, notify.
// No step is retried. Once the claim succeeds the slot is never released by this service.
type Service struct {
	store     AvailabilityStore
	ledger    Ledger
	engine    *Engine
	notifier  Notifier
	publisher events.Publisher
	metrics   *metrics.BookingMetrics
	logger    zerolog.Logger
	now       func() time.Time

	notifyTimeout time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(cfg.Logger)
	}
	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Service{
		store:     cfg.Store,
		ledger:    cfg.Ledger,
		engine:    NewEngine(cfg.Store, cfg.ClaimTimeout, cfg.Metrics, cfg.Logger),
		notifier:  cfg.Notifier,
		publisher: publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       time.Now,

		notifyTimeout: notifyTimeout,
	}
}

// Book runs one booking attempt through Init -> DoctorResolved -> SlotClaimed ->
// AppointmentRecorded -> Notified/NotifyFailed.
//
// Errors before SlotClaimed (ErrInvalidRequest, ErrDoctorNotFound, ErrSlotUnavailable,
// ErrStoreUnreachable) leave no side effect. ErrRecordingFailed means the slot stays claimed.
// A failed notification is not an error: the result is returned with Outcome
// OutcomeConfirmedNotifyFailed and NotificationError set.
func (s *Service) Book(ctx context.Context, req BookingRequest) (result *BookingResult, err error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("booking.doctor_id", req.Doctor.ID),
		attribute.String("booking.date", req.Date),
		attribute.String("booking.time", req.Time),
	))
	defer func() {
		outcome := outcomeFor(result, err)
		span.SetAttributes(attribute.String("booking.outcome", string(outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(outcome))
		}
		span.End()
		s.metrics.ObserveAttempt(string(outcome), time.Since(start).Seconds())
	}()

	req = normalizeRequest(req)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Resolve doctor
	doctor, err := s.store.GetDoctor(ctx, req.Doctor)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("%w: load doctor: %w", ErrStoreUnreachable, err)
	}
	span.AddEvent(string(StageDoctorResolved))

	// Claim slot
	if err := s.engine.Claim(ctx, doctor.ID, req.Date, req.Time); err != nil {
		return nil, err
	}
	span.AddEvent(string(StageSlotClaimed))

	// Record appointment. The claim already happened; from here on the slot is ours.
	appt, err := s.ledger.RecordAppointment(ctx, Appointment{
		ID:           uuid.NewString(),
		DoctorID:     doctor.ID,
		DoctorName:   doctor.Name,
		Date:         req.Date,
		Time:         req.Time,
		PatientEmail: req.PatientEmail,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		recErr := &RecordingError{DoctorID: doctor.ID, Date: req.Date, Time: req.Time, Err: err}
		s.logger.Error().
			Err(err).
			Str("doctor_id", doctor.ID).
			Str("doctor_name", doctor.Name).
			Str("date", req.Date).
			Str("time", req.Time).
			Str("patient_email", req.PatientEmail).
			Msg("slot claimed but appointment not recorded, needs reconciliation")
		s.publishEvent(ctx, events.RKBookingRecordingFailed, events.BookingEvent{
			DoctorID:     doctor.ID,
			DoctorName:   doctor.Name,
			Date:         req.Date,
			Time:         req.Time,
			PatientEmail: req.PatientEmail,
			Error:        err.Error(),
		})
		return nil, recErr
	}
	span.AddEvent(string(StageAppointmentRecorded))

	result = &BookingResult{
		Appointment: appt,
		Doctor:      doctor,
		Stage:       StageAppointmentRecorded,
		Outcome:     OutcomeConfirmed,
	}

	// Notify patient
	receipt, notifyErr := s.notify(ctx, *appt)
	if notifyErr != nil {
		s.logger.Warn().
			Err(notifyErr).
			Str("appointment_id", appt.ID).
			Str("patient_email", appt.PatientEmail).
			Msg("booking confirmed but confirmation could not be delivered")
		result.Stage = StageNotifyFailed
		result.Outcome = OutcomeConfirmedNotifyFailed
		result.NotificationError = notifyErr
		s.publishEvent(ctx, events.RKBookingNotificationFailed, appointmentEvent(*appt, notifyErr))
		return result, nil
	}

	result.Stage = StageNotified
	result.NotificationID = receipt
	s.publishEvent(ctx, events.RKBookingConfirmed, appointmentEvent(*appt, nil))

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("doctor_id", appt.DoctorID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment booked")

	return result, nil
}

func (s *Service) notify(ctx context.Context, appt Appointment) (string, error) {
	if s.notifier == nil {
		return "", errors.New("no notifier configured")
	}
	// a stalled provider must not hold the already-confirmed booking open
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	return s.notifier.NotifyBooking(ctx, appt)
}

func (s *Service) publishEvent(ctx context.Context, key string, ev events.BookingEvent) {
	ev.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, key, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", key).Msg("failed to publish booking event")
	}
}

// ListDoctors returns doctors, optionally filtered by specialization
func (s *Service) ListDoctors(ctx context.Context, specialization string) ([]Doctor, error) {
	doctors, err := s.store.ListDoctors(ctx, strings.TrimSpace(specialization))
	if err != nil {
		return nil, fmt.Errorf("%w: list doctors: %w", ErrStoreUnreachable, err)
	}
	return doctors, nil
}

// AvailableSlots resolves a doctor by id or name and returns its open slots
func (s *Service) AvailableSlots(ctx context.Context, sel DoctorSelector) (*Doctor, []Slot, error) {
	doctor, err := s.store.GetDoctor(ctx, sel)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil, ErrDoctorNotFound
		}
		return nil, nil, fmt.Errorf("%w: load doctor: %w", ErrStoreUnreachable, err)
	}

	slots, err := s.store.GetAvailableSlots(ctx, doctor.ID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil, ErrDoctorNotFound
		}
		return nil, nil, fmt.Errorf("%w: available slots: %w", ErrStoreUnreachable, err)
	}
	return doctor, slots, nil
}

// ListAppointments reads the ledger for audit
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appts, err := s.ledger.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: list appointments: %w", ErrStoreUnreachable, err)
	}
	return appts, nil
}

func normalizeRequest(req BookingRequest) BookingRequest {
	req.Doctor.ID = strings.TrimSpace(req.Doctor.ID)
	req.Doctor.Name = strings.TrimSpace(req.Doctor.Name)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.PatientEmail = strings.TrimSpace(req.PatientEmail)
	return req
}

func validateRequest(req BookingRequest) error {
	var missing []string
	if req.Doctor.Empty() {
		missing = append(missing, "doctor")
	}
	if req.Date == "" {
		missing = append(missing, "date")
	}
	if req.Time == "" {
		missing = append(missing, "time")
	}
	if req.PatientEmail == "" {
		missing = append(missing, "patient_email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

func appointmentEvent(appt Appointment, cause error) events.BookingEvent {
	ev := events.BookingEvent{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		DoctorName:    appt.DoctorName,
		Date:          appt.Date,
		Time:          appt.Time,
		PatientEmail:  appt.PatientEmail,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return ev
}

// outcomeFor maps the return values of Book to the outcome label used in metrics and traces.
func outcomeFor(result *BookingResult, err error) Outcome {
	switch {
	case err == nil && result != nil:
		return result.Outcome
	case errors.Is(err, ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, ErrDoctorNotFound):
		return OutcomeDoctorNotFound
	case errors.Is(err, ErrSlotUnavailable):
		return OutcomeSlotUnavailable
	case errors.Is(err, ErrRecordingFailed):
		return OutcomeRecordingFailed
	default:
		return OutcomeStoreUnreachable
	}
}
