package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-booking/internal/booking"
	"github.com/hackgods/clinic-slot-booking/internal/dialogue"
)

type BookingService interface {
	Book(ctx context.Context, req booking.BookingRequest) (*booking.BookingResult, error)
	ListDoctors(ctx context.Context, specialization string) ([]booking.Doctor, error)
	AvailableSlots(ctx context.Context, sel booking.DoctorSelector) (*booking.Doctor, []booking.Slot, error)
	ListAppointments(ctx context.Context, f booking.AppointmentFilter) ([]booking.Appointment, error)
}

type DoctorSuggester interface {
	SuggestDoctor(ctx context.Context, specialization string) (*booking.Doctor, error)
}

type Receptionist interface {
	Turn(ctx context.Context, sessionID, text string) (*dialogue.Reply, error)
}

type RouterConfig struct {
	Service      BookingService
	Suggester    DoctorSuggester
	Receptionist Receptionist
	Replier      dialogue.Replier // optional, nil disables free-form chat
	Checks       []DependencyCheck
	Gatherer     prometheus.Gatherer
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/doctors", listDoctorsHandler(cfg.Service))
		r.Get("/doctors/{id}/availability", availabilityHandler(cfg.Service))
		r.Post("/book", bookHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Post("/message", messageHandler(cfg.Service, cfg.Suggester, cfg.Replier, cfg.Logger))
		if cfg.Receptionist != nil {
			r.Post("/receptionist/turn", receptionistTurnHandler(cfg.Receptionist))
		}
	})

	return r
}
