package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/hackgods/clinic-slot-booking/internal/events"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Appointment
	err  error
}

func (n *fakeNotifier) NotifyBooking(_ context.Context, appt Appointment) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.sent = append(n.sent, appt)
	return "msg-" + appt.ID, nil
}

type publishedEvent struct {
	key string
	ev  events.BookingEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, key string, ev events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, ev: ev})
	return p.err
}

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

// failingLedger wraps a ledger and fails every write.
type failingLedger struct {
	Ledger
	err error
}

func (l failingLedger) RecordAppointment(context.Context, Appointment) (*Appointment, error) {
	return nil, l.err
}

// blockingStore never answers a claim until the context gives up.
type blockingStore struct {
	AvailabilityStore
}

func (blockingStore) ClaimSlot(ctx context.Context, _, _, _ string) (ClaimResult, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// blockingNotifier holds the send until the context gives up.
type blockingNotifier struct{}

func (blockingNotifier) NotifyBooking(ctx context.Context, _ Appointment) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type brokenStore struct {
	AvailabilityStore
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func (brokenStore) ClaimSlot(context.Context, string, string, string) (ClaimResult, error) {
	return 0, errConnRefused
}

func (brokenStore) GetDoctor(context.Context, DoctorSelector) (*Doctor, error) {
	return nil, errConnRefused
}

func (brokenStore) ListDoctors(context.Context, string) ([]Doctor, error) {
	return nil, errConnRefused
}

func seedDoctor(repo *MemoryRepository, name, specialization string, slots ...Slot) Doctor {
	d, err := repo.CreateDoctor(context.Background(), Doctor{
		Name:           name,
		Specialization: specialization,
		Availability:   slots,
	})
	if err != nil {
		panic(err)
	}
	return *d
}

func openSlot(date, t string) Slot {
	return Slot{Date: date, Time: t, Available: true}
}
