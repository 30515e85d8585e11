package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/metrics"
)

// Reconciler finds claimed slots that never made it into the ledger. It only reports them:
// reopening a slot a patient may believe they won is left to an operator.
type Reconciler struct {
	store   AvailabilityStore
	ledger  Ledger
	grace   time.Duration
	metrics *metrics.BookingMetrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewReconciler(store AvailabilityStore, ledger Ledger, grace time.Duration, m *metrics.BookingMetrics, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		ledger:  ledger,
		grace:   grace,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// FindOrphans returns slots claimed more than grace ago with no matching appointment.
func (r *Reconciler) FindOrphans(ctx context.Context) ([]ClaimedSlot, error) {
	cutoff := r.now().Add(-r.grace)
	claimed, err := r.store.ListClaimedSlots(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list claimed slots: %w", err)
	}

	var orphans []ClaimedSlot
	for _, slot := range claimed {
		ok, err := r.ledger.HasAppointment(ctx, slot.DoctorID, slot.Date, slot.Time)
		if err != nil {
			return nil, fmt.Errorf("check ledger for %s/%s/%s: %w", slot.DoctorID, slot.Date, slot.Time, err)
		}
		if !ok {
			orphans = append(orphans, slot)
		}
	}
	return orphans, nil
}

// Run is intended to be called by the worker periodically
func (r *Reconciler) Run(ctx context.Context) ([]ClaimedSlot, error) {
	orphans, err := r.FindOrphans(ctx)
	if err != nil {
		return nil, err
	}

	r.metrics.SetOrphaned(len(orphans))
	for _, o := range orphans {
		r.logger.Error().
			Str("doctor_id", o.DoctorID).
			Str("doctor_name", o.DoctorName).
			Str("date", o.Date).
			Str("time", o.Time).
			Time("claimed_at", o.ClaimedAt).
			Msg("orphaned slot: claimed without appointment")
	}
	return orphans, nil
}
