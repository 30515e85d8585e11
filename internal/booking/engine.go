package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/metrics"
)

const defaultClaimTimeout = 3 * time.Second

// Engine is the slot reservation engine. It issues exactly one conditional update per claim
// and never retries: a losing caller re-reads availability and lets the patient choose again.
type Engine struct {
	store   AvailabilityStore
	timeout time.Duration
	metrics *metrics.BookingMetrics
	logger  zerolog.Logger
}

func NewEngine(store AvailabilityStore, timeout time.Duration, m *metrics.BookingMetrics, logger zerolog.Logger) *Engine {
	if timeout <= 0 {
		timeout = defaultClaimTimeout
	}
	return &Engine{
		store:   store,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Claim flips the (doctorID, date, time) slot from available to claimed.
// It returns nil when this caller won the slot, ErrSlotUnavailable when the slot does not exist
// or is already taken, ErrDoctorNotFound for an unknown doctor and ErrStoreUnreachable otherwise.
func (e *Engine) Claim(ctx context.Context, doctorID, date, slotTime string) error {
	claimCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.store.ClaimSlot(claimCtx, doctorID, date, slotTime)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			e.metrics.ObserveClaim(DoctorNotFound.String())
			return ErrDoctorNotFound
		}
		// Outcome unknown: the update may or may not have landed. Never report success.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			e.logger.Warn().
				Err(err).
				Str("doctor_id", doctorID).
				Str("date", date).
				Str("time", slotTime).
				Msg("slot claim timed out with unknown outcome")
			e.metrics.ObserveClaim("timeout")
			return ErrSlotUnavailable
		}
		e.metrics.ObserveClaim("error")
		return fmt.Errorf("%w: claim slot: %w", ErrStoreUnreachable, err)
	}

	e.metrics.ObserveClaim(res.String())

	switch res {
	case Claimed:
		return nil
	case DoctorNotFound:
		return ErrDoctorNotFound
	default:
		return ErrSlotUnavailable
	}
}
