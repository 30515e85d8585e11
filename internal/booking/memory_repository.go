package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements AvailabilityStore, Ledger and Provisioner in process.
// Used for local development and tests; the mutex plays the role of the document-level
// atomic update.
type MemoryRepository struct {
	mu           sync.Mutex
	doctors      map[string]*Doctor
	order        []string
	appointments []Appointment
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors: make(map[string]*Doctor),
		now:     time.Now,
	}
}

func (r *MemoryRepository) CreateDoctor(_ context.Context, d Doctor) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	slots := make([]Slot, len(d.Availability))
	copy(slots, d.Availability)
	d.Availability = slots

	r.doctors[d.ID] = &d
	r.order = append(r.order, d.ID)

	out := cloneDoctor(&d)
	return &out, nil
}

func (r *MemoryRepository) DoctorNameExists(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByNameLocked(name) != nil, nil
}

func (r *MemoryRepository) ListDoctors(_ context.Context, specialization string) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Doctor
	for _, id := range r.order {
		d := r.doctors[id]
		if specialization != "" && d.Specialization != specialization {
			continue
		}
		out = append(out, cloneDoctor(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) GetDoctor(_ context.Context, sel DoctorSelector) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sel.ID != "" {
		if d, ok := r.doctors[sel.ID]; ok {
			out := cloneDoctor(d)
			return &out, nil
		}
	}
	if sel.Name != "" {
		if d := r.findByNameLocked(sel.Name); d != nil {
			out := cloneDoctor(d)
			return &out, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *MemoryRepository) GetAvailableSlots(_ context.Context, doctorID string) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[doctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	var out []Slot
	for _, s := range d.Availability {
		if s.Available {
			out = append(out, Slot{Date: s.Date, Time: s.Time, Available: true})
		}
	}
	return out, nil
}

func (r *MemoryRepository) ClaimSlot(ctx context.Context, doctorID, date, slotTime string) (ClaimResult, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[doctorID]
	if !ok {
		return DoctorNotFound, nil
	}
	for i := range d.Availability {
		s := &d.Availability[i]
		if s.Date == date && s.Time == slotTime && s.Available {
			claimedAt := r.now().UTC()
			s.Available = false
			s.ClaimedAt = &claimedAt
			return Claimed, nil
		}
	}
	return SlotUnavailable, nil
}

func (r *MemoryRepository) ListClaimedSlots(_ context.Context, claimedBefore time.Time) ([]ClaimedSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ClaimedSlot
	for _, id := range r.order {
		d := r.doctors[id]
		for _, s := range d.Availability {
			if s.Available || s.ClaimedAt == nil || !s.ClaimedAt.Before(claimedBefore) {
				continue
			}
			out = append(out, ClaimedSlot{
				DoctorID:   d.ID,
				DoctorName: d.Name,
				Date:       s.Date,
				Time:       s.Time,
				ClaimedAt:  *s.ClaimedAt,
			})
		}
	}
	return out, nil
}

func (r *MemoryRepository) RecordAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = r.now().UTC()
	}
	r.appointments = append(r.appointments, appt)
	return &appt, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f AppointmentFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Appointment
	// newest first, like the SQL ledger
	for i := len(r.appointments) - 1; i >= 0; i-- {
		a := r.appointments[i]
		if f.DoctorID != "" && a.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientEmail != "" && !strings.EqualFold(a.PatientEmail, f.PatientEmail) {
			continue
		}
		matched = append(matched, a)
	}

	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (r *MemoryRepository) HasAppointment(_ context.Context, doctorID, date, slotTime string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Time == slotTime {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) findByNameLocked(name string) *Doctor {
	for _, id := range r.order {
		d := r.doctors[id]
		if strings.EqualFold(d.Name, name) {
			return d
		}
	}
	return nil
}

func cloneDoctor(d *Doctor) Doctor {
	out := *d
	out.Availability = make([]Slot, len(d.Availability))
	copy(out.Availability, d.Availability)
	return out
}
