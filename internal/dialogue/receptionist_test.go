package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
	"github.com/hackgods/clinic-slot-booking/internal/logging"
)

type stubNotifier struct{ err error }

func (n stubNotifier) NotifyBooking(context.Context, booking.Appointment) (string, error) {
	return "receipt", n.err
}

type stubReplier struct {
	answer string
	prompt string
}

func (s *stubReplier) Reply(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.answer, nil
}

type fixture struct {
	repo     *booking.MemoryRepository
	svc      *booking.Service
	sessions *MemorySessionStore
	r        *Receptionist
	doctor   *booking.Doctor
}

func newFixture(t *testing.T, replier Replier) *fixture {
	t.Helper()
	repo := booking.NewMemoryRepository()
	doctor, err := repo.CreateDoctor(context.Background(), booking.Doctor{
		Name:           "Dr. Mehta",
		Specialization: "Cardiologist",
		Availability: []booking.Slot{
			{Date: "2025-09-15", Time: "10:00 AM", Available: true},
			{Date: "2025-09-15", Time: "11:00 AM", Available: true},
		},
	})
	require.NoError(t, err)

	svc := booking.NewService(booking.ServiceConfig{
		Store:    repo,
		Ledger:   repo,
		Notifier: stubNotifier{},
		Logger:   logging.Nop(),
	})
	sessions := NewMemorySessionStore(time.Hour)
	return &fixture{
		repo:     repo,
		svc:      svc,
		sessions: sessions,
		r:        NewReceptionist(sessions, svc, booking.NewResolver(repo), replier, logging.Nop()),
		doctor:   doctor,
	}
}

// talk runs the given utterances in one session and returns the last reply.
func (f *fixture) talk(t *testing.T, sessionID string, lines ...string) *Reply {
	t.Helper()
	var reply *Reply
	for _, line := range lines {
		var err error
		reply, err = f.r.Turn(context.Background(), sessionID, line)
		require.NoError(t, err)
		sessionID = reply.SessionID
	}
	return reply
}

func TestReceptionistHappyPath(t *testing.T) {
	f := newFixture(t, nil)

	reply := f.talk(t, "", "")
	assert.Equal(t, StageAskDoctor, reply.Stage)
	require.NotEmpty(t, reply.SessionID)
	id := reply.SessionID

	steps := []struct {
		text  string
		stage Stage
	}{
		{"dr. mehta please", StageAskDoctor},
		{"Dr. Mehta", StageAskDate},
		{"how about 2025-09-15", StageAskTime},
		{"at 10:00 am", StageAskEmail},
		{"it's jane.doe@example.com", StageConfirm},
	}
	for _, s := range steps {
		reply = f.talk(t, id, s.text)
		assert.Equal(t, s.stage, reply.Stage, s.text)
		assert.Equal(t, id, reply.SessionID)
	}
	assert.Equal(t, "Confirming: appointment with Dr. Mehta on 2025-09-15 at 10:00 AM. Should I confirm?", reply.Text)

	reply = f.talk(t, id, "yes, go ahead")
	assert.Equal(t, StageDone, reply.Stage)
	assert.True(t, reply.Done)
	require.NotNil(t, reply.Appointment)
	assert.Equal(t, "jane.doe@example.com", reply.Appointment.PatientEmail)
	assert.Contains(t, reply.Text, "A confirmation email has been sent.")

	ok, err := f.repo.HasAppointment(context.Background(), f.doctor.ID, "2025-09-15", "10:00 AM")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReceptionistSpecializationPicksDoctor(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "I have chest pain")
	assert.Equal(t, StageAskDate, reply.Stage)
	assert.Contains(t, reply.Text, "Dr. Mehta")
}

func TestReceptionistListsDoctorsOnBookingIntent(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "I want to book an appointment")
	assert.Equal(t, StageAskDoctor, reply.Stage)
	assert.Contains(t, reply.Text, "Dr. Mehta (Cardiologist)")
}

func TestReceptionistUnknownDoctor(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "Dr. Who")
	assert.Equal(t, StageAskDoctor, reply.Stage)
	assert.Contains(t, reply.Text, "I couldn't find that doctor")
}

func TestReceptionistFallsBackToReplier(t *testing.T) {
	replier := &stubReplier{answer: "<think>hmm</think>We open at 9."}
	f := newFixture(t, replier)

	reply := f.talk(t, "", "", "what are your opening hours")
	assert.Equal(t, StageAskDoctor, reply.Stage)
	assert.Equal(t, "We open at 9.", reply.Text)
	assert.Contains(t, replier.prompt, "opening hours")
}

func TestReceptionistRepromptsOnBadInput(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "Dr. Mehta", "sometime soon")
	assert.Equal(t, StageAskDate, reply.Stage)
	assert.Contains(t, reply.Text, "Please say the date")

	reply = f.talk(t, reply.SessionID, "2025-09-15", "whenever")
	assert.Equal(t, StageAskTime, reply.Stage)

	reply = f.talk(t, reply.SessionID, "10:00 AM", "not an email")
	assert.Equal(t, StageAskEmail, reply.Stage)
}

func TestReceptionistLostSlotReturnsToAskTime(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "Dr. Mehta", "2025-09-15", "10:00 am", "p@example.com")
	require.Equal(t, StageConfirm, reply.Stage)
	id := reply.SessionID

	// someone else takes the slot between prompt and confirmation
	_, err := f.repo.ClaimSlot(context.Background(), f.doctor.ID, "2025-09-15", "10:00 AM")
	require.NoError(t, err)

	reply = f.talk(t, id, "yes")
	assert.Equal(t, StageAskTime, reply.Stage)
	assert.Contains(t, reply.Text, "no longer available")

	// email is kept, so a new time goes straight back to confirm
	reply = f.talk(t, id, "11:00 am")
	assert.Equal(t, StageConfirm, reply.Stage)

	reply = f.talk(t, id, "ok")
	assert.Equal(t, StageDone, reply.Stage)
	require.NotNil(t, reply.Appointment)
	assert.Equal(t, "11:00 AM", reply.Appointment.Time)
}

func TestReceptionistConfirmAmendsAndDeclines(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "Dr. Mehta", "2025-09-15", "10:00 am", "p@example.com")
	id := reply.SessionID

	reply = f.talk(t, id, "make it 11:00 am instead")
	assert.Equal(t, StageConfirm, reply.Stage)
	assert.Contains(t, reply.Text, "11:00 AM")

	reply = f.talk(t, id, "hmm")
	assert.Equal(t, StageConfirm, reply.Stage)
	assert.Contains(t, reply.Text, "Should I proceed")

	reply = f.talk(t, id, "no")
	assert.Equal(t, StageDone, reply.Stage)
	assert.True(t, reply.Done)

	appts, err := f.repo.ListAppointments(context.Background(), booking.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestReceptionistDegradedConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	f.r.booker = booking.NewService(booking.ServiceConfig{
		Store:    f.repo,
		Ledger:   f.repo,
		Notifier: stubNotifier{err: errors.New("smtp down")},
		Logger:   logging.Nop(),
	})

	reply := f.talk(t, "", "", "Dr. Mehta", "2025-09-15", "10:00 am", "p@example.com", "yes")
	assert.Equal(t, StageDone, reply.Stage)
	assert.Contains(t, reply.Text, "could not send the confirmation email")
}

func TestReceptionistUnknownSessionStartsOver(t *testing.T) {
	f := newFixture(t, nil)
	reply, err := f.r.Turn(context.Background(), "expired-session", "hello")
	require.NoError(t, err)
	assert.Equal(t, StageAskDoctor, reply.Stage)
	assert.NotEqual(t, "expired-session", reply.SessionID)
}

func TestReceptionistDoneRestartsOnBookingIntent(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "", "Dr. Mehta", "2025-09-15", "10:00 am", "p@example.com", "yes")
	require.Equal(t, StageDone, reply.Stage)

	reply = f.talk(t, reply.SessionID, "thanks")
	assert.Equal(t, StageDone, reply.Stage)

	reply = f.talk(t, reply.SessionID, "can I book another appointment")
	assert.Equal(t, StageAskDoctor, reply.Stage)

	sess, err := f.sessions.Get(context.Background(), reply.SessionID)
	require.NoError(t, err)
	assert.Empty(t, sess.Collected.Email)
}

type busyLocker struct{}

func (busyLocker) WithSessionLock(context.Context, string, func(context.Context) error) error {
	return ErrSessionBusy
}

func TestReceptionistBusySession(t *testing.T) {
	f := newFixture(t, nil)
	reply := f.talk(t, "", "")

	f.r.WithLocker(busyLocker{})
	_, err := f.r.Turn(context.Background(), reply.SessionID, "Dr. Mehta")
	assert.ErrorIs(t, err, ErrSessionBusy)

	sess, err := f.sessions.Get(context.Background(), reply.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StageAskDoctor, sess.Stage, "busy turn changes nothing")
}
