package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
	"github.com/hackgods/clinic-slot-booking/internal/dialogue"
)

const (
	notifyWarning = "appointment confirmed, but the confirmation email could not be sent"

	bookingReplyWithSpecialization = "I can help you book an appointment. Based on your message, a %s would be appropriate. I will take you to the appointment section now and suggest a doctor."
	bookingReplyGeneric            = "I can help you book an appointment. I will take you to the appointment section now. Please choose a specialization."
	bookingReplyLookupFailed       = "I can help you book an appointment. I will take you to the appointment section now."

	chatPrompt = "You are a medical-only assistant. Strictly answer only questions related to health, medicine, symptoms, diagnosis, treatment, medications, lifestyle for health, or healthcare logistics. If the user asks about non-medical topics, politely refuse and redirect to medical topics. If it's a serious medical concern, recommend consulting a healthcare professional.\n\nUser question: %s\n\nProvide a concise medical answer:"
	chatFallbackReply = "I apologize, but I could not generate a response."
)

func listDoctorsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context(), r.URL.Query().Get("specialization"))
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, toDoctorResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// availabilityHandler accepts either the doctor id or the doctor name in the path.
func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := url.PathUnescape(chi.URLParam(r, "id"))
		if err != nil || strings.TrimSpace(ref) == "" {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor id or name is required")
			return
		}

		doctor, slots, err := svc.AvailableSlots(r.Context(), booking.DoctorSelector{ID: ref, Name: ref})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := AvailabilityResponse{
			DoctorID:     doctor.ID,
			DoctorName:   doctor.Name,
			Availability: make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Availability = append(resp.Availability, SlotResponse{Date: s.Date, Time: s.Time})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		result, err := svc.Book(r.Context(), booking.BookingRequest{
			Doctor:       booking.DoctorSelector{ID: req.DoctorID, Name: req.DoctorName},
			Date:         req.Date,
			Time:         req.Time,
			PatientEmail: req.PatientEmail,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		appt := toAppointmentResponse(*result.Appointment)
		resp := BookResponse{
			Message:        fmt.Sprintf("Your appointment with %s on %s at %s is confirmed.", appt.DoctorName, appt.Date, appt.Time),
			Appointment:    &appt,
			NotificationID: result.NotificationID,
		}
		if result.Degraded() {
			resp.Warning = notifyWarning
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := intParam(q.Get("limit"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		offset, err := intParam(q.Get("offset"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}

		appts, err := svc.ListAppointments(r.Context(), booking.AppointmentFilter{
			DoctorID:     q.Get("doctor_id"),
			PatientEmail: q.Get("patient_email"),
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// messageHandler redirects booking-like messages to the appointment flow and forwards
// everything else to the chat model.
func messageHandler(svc BookingService, suggester DoctorSuggester, replier dialogue.Replier, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "message is required")
			return
		}

		specialization, hasSpecialization := booking.DetectSpecialization(req.Message)
		if hasSpecialization || booking.DetectBookingIntent(req.Message) {
			doctor, err := suggestDoctor(r, svc, suggester, specialization)
			if err != nil {
				logger.Warn().Err(err).Str("specialization", specialization).Msg("doctor suggestion failed")
				writeJSON(w, http.StatusOK, MessageResponse{Reply: bookingReplyLookupFailed, Intent: "booking"})
				return
			}

			resp := MessageResponse{Intent: "booking", Specialization: specialization}
			if doctor != nil {
				d := toDoctorResponse(*doctor)
				resp.Doctor = &d
				if resp.Specialization == "" {
					resp.Specialization = doctor.Specialization
				}
			}
			if resp.Specialization != "" {
				resp.Reply = fmt.Sprintf(bookingReplyWithSpecialization, resp.Specialization)
			} else {
				resp.Reply = bookingReplyGeneric
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		if replier == nil {
			writeError(w, http.StatusServiceUnavailable, "chat_unavailable", "no chat model is configured")
			return
		}

		reply, err := replier.Reply(r.Context(), fmt.Sprintf(chatPrompt, req.Message))
		if err != nil {
			logger.Error().Err(err).Msg("chat model failed")
			writeError(w, http.StatusBadGateway, "chat_failed", "the chat model is not available")
			return
		}
		reply = dialogue.StripThinking(reply)
		if reply == "" {
			reply = chatFallbackReply
		}
		writeJSON(w, http.StatusOK, MessageResponse{Reply: reply})
	}
}

// suggestDoctor picks a doctor for the detected specialization, or any doctor when none
// was detected.
func suggestDoctor(r *http.Request, svc BookingService, suggester DoctorSuggester, specialization string) (*booking.Doctor, error) {
	if specialization != "" && suggester != nil {
		return suggester.SuggestDoctor(r.Context(), specialization)
	}
	doctors, err := svc.ListDoctors(r.Context(), specialization)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, nil
	}
	return &doctors[0], nil
}

func receptionistTurnHandler(rec Receptionist) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reply, err := rec.Turn(r.Context(), req.SessionID, req.Text)
		if err != nil {
			switch {
			case errors.Is(err, dialogue.ErrSessionBusy):
				writeError(w, http.StatusConflict, "session_busy", "another message for this session is still being handled")
			default:
				handleBookingError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, reply)
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrRecordingFailed):
		writeError(w, http.StatusInternalServerError, "recording_failed", "the slot was reserved but the appointment could not be saved, staff will follow up")
	case errors.Is(err, booking.ErrStoreUnreachable):
		writeError(w, http.StatusServiceUnavailable, "store_unreachable", "availability store is unreachable, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func toDoctorResponse(d booking.Doctor) DoctorResponse {
	return DoctorResponse{ID: d.ID, Name: d.Name, Specialization: d.Specialization}
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		DoctorName:   a.DoctorName,
		Date:         a.Date,
		Time:         a.Time,
		PatientEmail: a.PatientEmail,
		CreatedAt:    a.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
