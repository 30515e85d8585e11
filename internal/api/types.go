package api

import (
	"time"
)

type BookRequest struct {
	DoctorID     string `json:"doctor_id"`
	DoctorName   string `json:"doctor_name"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	PatientEmail string `json:"patient_email"`
}

type BookResponse struct {
	Message        string               `json:"message"`
	Appointment    *AppointmentResponse `json:"appointment"`
	NotificationID string               `json:"email_id,omitempty"`
	Warning        string               `json:"warning,omitempty"`
}

type DoctorResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

type SlotResponse struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AvailabilityResponse struct {
	DoctorID     string         `json:"doctor_id"`
	DoctorName   string         `json:"doctor_name"`
	Availability []SlotResponse `json:"availability"`
}

type AppointmentResponse struct {
	ID           string    `json:"id"`
	DoctorID     string    `json:"doctor_id"`
	DoctorName   string    `json:"doctor_name"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	PatientEmail string    `json:"patient_email"`
	CreatedAt    time.Time `json:"created_at"`
}

type MessageRequest struct {
	Message string `json:"message"`
}

type MessageResponse struct {
	Reply          string          `json:"reply"`
	Intent         string          `json:"intent,omitempty"`
	Specialization string          `json:"specialization,omitempty"`
	Doctor         *DoctorResponse `json:"doctor,omitempty"`
}

type TurnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
