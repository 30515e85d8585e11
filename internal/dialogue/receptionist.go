package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
)

// Booker is the booking orchestrator as seen by the dialogue.
type Booker interface {
	Book(ctx context.Context, req booking.BookingRequest) (*booking.BookingResult, error)
	ListDoctors(ctx context.Context, specialization string) ([]booking.Doctor, error)
}

type DoctorFinder interface {
	FindDoctor(ctx context.Context, text string) (*booking.Doctor, error)
}

// Replier answers free-form questions that are not part of a booking. Optional.
type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

type Reply struct {
	SessionID   string               `json:"session_id"`
	Text        string               `json:"reply"`
	Stage       Stage                `json:"stage"`
	Done        bool                 `json:"done"`
	Appointment *booking.Appointment `json:"-"`
}

// Receptionist walks a caller through greet -> ask_doctor -> ask_date -> ask_time ->
// ask_email -> confirm -> done. Every transition needs a validated extraction from the
// caller's text; the only write happens at confirm, through the booking orchestrator.
type Receptionist struct {
	sessions SessionStore
	booker   Booker
	finder   DoctorFinder
	replier  Replier
	locker   TurnLocker
	logger   zerolog.Logger
}

func NewReceptionist(sessions SessionStore, booker Booker, finder DoctorFinder, replier Replier, logger zerolog.Logger) *Receptionist {
	return &Receptionist{
		sessions: sessions,
		booker:   booker,
		finder:   finder,
		replier:  replier,
		logger:   logger,
	}
}

// WithLocker makes turns of one session mutually exclusive. A turn that finds the session
// busy fails with ErrSessionBusy.
func (r *Receptionist) WithLocker(l TurnLocker) *Receptionist {
	r.locker = l
	return r
}

// Turn feeds one caller utterance into the session and returns the receptionist's answer.
// An empty or unknown session id starts a new session.
func (r *Receptionist) Turn(ctx context.Context, sessionID, text string) (*Reply, error) {
	if r.locker == nil || sessionID == "" {
		return r.turn(ctx, sessionID, text)
	}

	var reply *Reply
	err := r.locker.WithSessionLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		reply, err = r.turn(ctx, sessionID, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (r *Receptionist) turn(ctx context.Context, sessionID, text string) (*Reply, error) {
	sess, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := r.step(ctx, sess, strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}

	if err := r.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	reply.SessionID = sess.ID
	reply.Stage = sess.Stage
	return reply, nil
}

func (r *Receptionist) load(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		sess, err := r.sessions.Get(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}
	return &Session{ID: uuid.NewString(), Stage: StageGreet}, nil
}

func (r *Receptionist) step(ctx context.Context, sess *Session, text string) (*Reply, error) {
	switch sess.Stage {
	case StageGreet:
		sess.Stage = StageAskDoctor
		return &Reply{Text: "Hello, this is the clinic receptionist. How may I help you today? If you want to book an appointment, please tell me the doctor or specialization."}, nil
	case StageAskDoctor:
		return r.askDoctor(ctx, sess, text)
	case StageAskDate:
		date, ok := ExtractDate(text)
		if !ok {
			return &Reply{Text: `Please say the date like "September 15" or "2025-09-15".`}, nil
		}
		sess.Collected.Date = date
		sess.Stage = StageAskTime
		return &Reply{Text: `Thanks. Now tell me a time, like "10:00 AM" or "14:30".`}, nil
	case StageAskTime:
		t, ok := ExtractTime(text)
		if !ok {
			return &Reply{Text: `Please say a time like "10:00 AM" or "14:30".`}, nil
		}
		sess.Collected.Time = t
		if sess.Collected.Email != "" {
			sess.Stage = StageConfirm
			return &Reply{Text: confirmPrompt(sess.Collected)}, nil
		}
		sess.Stage = StageAskEmail
		return &Reply{Text: "Got it. What is your email address for the booking confirmation?"}, nil
	case StageAskEmail:
		email, ok := ExtractEmail(text)
		if !ok {
			return &Reply{Text: "Please provide a valid email address like name@example.com."}, nil
		}
		sess.Collected.Email = email
		sess.Stage = StageConfirm
		return &Reply{Text: confirmPrompt(sess.Collected)}, nil
	case StageConfirm:
		return r.confirm(ctx, sess, text)
	default:
		if booking.DetectBookingIntent(text) {
			sess.Collected = Collected{}
			sess.Stage = StageAskDoctor
			return &Reply{Text: "Sure. Which doctor or specialization would you like?"}, nil
		}
		sess.Stage = StageDone
		return &Reply{Text: "How may I assist you further?", Done: true}, nil
	}
}

func (r *Receptionist) askDoctor(ctx context.Context, sess *Session, text string) (*Reply, error) {
	if text != "" {
		doctor, err := r.finder.FindDoctor(ctx, text)
		switch {
		case err == nil:
			sess.Collected.DoctorID = doctor.ID
			sess.Collected.DoctorName = doctor.Name
			sess.Stage = StageAskDate
			return &Reply{Text: fmt.Sprintf(`Great. For %s. Please tell me the date. For example, say "September 15".`, doctor.Name)}, nil
		case !errors.Is(err, booking.ErrDoctorNotFound):
			return nil, fmt.Errorf("find doctor: %w", err)
		}

		_, hasSpec := booking.DetectSpecialization(text)
		if !booking.DetectBookingIntent(text) && !hasSpec && r.replier != nil {
			answer, err := r.replier.Reply(ctx, "User asked: "+text+". Provide a concise answer.")
			if err == nil {
				return &Reply{Text: StripThinking(answer)}, nil
			}
			r.logger.Warn().Err(err).Msg("receptionist fallback reply failed")
		}
	}

	doctors, err := r.booker.ListDoctors(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	if len(doctors) == 0 {
		return &Reply{Text: "Sorry, no doctors are accepting appointments right now."}, nil
	}

	names := make([]string, 0, len(doctors))
	for _, d := range doctors {
		names = append(names, fmt.Sprintf("%s (%s)", d.Name, d.Specialization))
	}
	if text == "" || booking.DetectBookingIntent(text) {
		return &Reply{Text: "We have the following doctors available: " + strings.Join(names, ", ") + ". Which doctor would you like?"}, nil
	}
	return &Reply{Text: "I couldn't find that doctor. Available doctors are: " + strings.Join(names, ", ") + ". Please say the doctor's name."}, nil
}

func (r *Receptionist) confirm(ctx context.Context, sess *Session, text string) (*Reply, error) {
	c := sess.Collected

	if !IsConfirmation(text) {
		// a new date or time in place of yes/no amends the pending booking
		amended := false
		if d, ok := ExtractDate(text); ok {
			sess.Collected.Date = d
			amended = true
		}
		if t, ok := ExtractTime(text); ok {
			sess.Collected.Time = t
			amended = true
		}
		if amended {
			return &Reply{Text: confirmPrompt(sess.Collected)}, nil
		}
		if IsDecline(text) {
			sess.Collected = Collected{}
			sess.Stage = StageDone
			return &Reply{Text: "No problem, I have not booked anything. How may I assist you further?", Done: true}, nil
		}
		return &Reply{Text: "Okay. Should I proceed with the booking? Please say yes to confirm or say a new time/date."}, nil
	}

	res, err := r.booker.Book(ctx, booking.BookingRequest{
		Doctor:       booking.DoctorSelector{ID: c.DoctorID, Name: c.DoctorName},
		Date:         c.Date,
		Time:         c.Time,
		PatientEmail: c.Email,
	})
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrSlotUnavailable):
		sess.Stage = StageAskTime
		return &Reply{Text: "Sorry, that slot is no longer available. Please choose a different time."}, nil
	case errors.Is(err, booking.ErrDoctorNotFound):
		sess.Collected = Collected{Email: c.Email}
		sess.Stage = StageAskDoctor
		return &Reply{Text: "Sorry, I can no longer find that doctor. Which doctor would you like instead?"}, nil
	case errors.Is(err, booking.ErrRecordingFailed):
		r.logger.Error().Err(err).Str("session_id", sess.ID).Msg("receptionist booking not recorded")
		sess.Stage = StageDone
		return &Reply{Text: "Your slot is held but I could not finish the paperwork. Our staff will contact you to complete the booking.", Done: true}, nil
	default:
		r.logger.Error().Err(err).Str("session_id", sess.ID).Msg("receptionist booking failed")
		return &Reply{Text: "Sorry, I could not reach the booking system. Please say yes to try again in a moment."}, nil
	}

	sess.Stage = StageDone
	text = fmt.Sprintf("Your appointment with %s is confirmed for %s at %s.", c.DoctorName, c.Date, c.Time)
	if res.Degraded() {
		text += " I could not send the confirmation email, so please note these details."
	} else {
		text += " A confirmation email has been sent."
	}
	return &Reply{Text: text, Done: true, Appointment: res.Appointment}, nil
}

func confirmPrompt(c Collected) string {
	return fmt.Sprintf("Confirming: appointment with %s on %s at %s. Should I confirm?", c.DoctorName, c.Date, c.Time)
}
