package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-admin/internal/views"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

type RouterConfig struct {
	Clients      ClientService
	Therapists   TherapistService
	Appointments AppointmentService
	Auth         AuthService
	Snapshots    Snapshots
	Projector    views.Projector
	Logger       *logging.Logger

	Postgres Pinger
	Redis    Pinger
	Metrics  http.Handler // defaults to the default prometheus registry
	Env      string
	Version  string
	Now      func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}

	h := &Handler{
		clients:      cfg.Clients,
		therapists:   cfg.Therapists,
		appointments: cfg.Appointments,
		auth:         cfg.Auth,
		snapshots:    cfg.Snapshots,
		projector:    cfg.Projector,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", cfg.Metrics)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-in", h.signIn)
		r.Post("/code", h.sendCode)
		r.Post("/verify", h.verifyCode)
		r.Post("/password/forgot", h.forgotPassword)
		r.Post("/password/reset", h.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(cfg.Auth))
			r.Post("/sign-out", h.signOut)
			r.Get("/me", h.me)
			r.Put("/password", h.updatePassword)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(cfg.Auth))

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.listClients)
			r.Post("/", h.createClient)
			r.Get("/stats", h.clientStats)
			r.Get("/expiring", h.expiringClients)
			r.Get("/export", h.exportClients)
			r.Post("/reminders", h.sendReminders)
			r.Post("/bulk-delete", h.bulkDeleteClients)
			r.Get("/{id}", h.getClient)
			r.Put("/{id}", h.updateClient)
			r.Delete("/{id}", h.deleteClient)
			r.Post("/{id}/renew", h.renewClient)
		})

		r.Route("/therapists", func(r chi.Router) {
			r.Get("/", h.listTherapists)
			r.Post("/", h.createTherapist)
			r.Get("/stats", h.therapistStats)
			r.Get("/calendar", h.leaveCalendar)
			r.Get("/{id}", h.getTherapist)
			r.Put("/{id}", h.updateTherapist)
			r.Delete("/{id}", h.deleteTherapist)
			r.Post("/{id}/leaves", h.addLeave)
			r.Put("/{id}/leaves/{leaveID}", h.updateLeave)
			r.Delete("/{id}/leaves/{leaveID}", h.removeLeave)
			r.Get("/{id}/availability", h.therapistAvailability)
			r.Get("/{id}/free-slots", h.freeSlots)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.listAppointments)
			r.Post("/", h.createAppointment)
			r.Post("/check", h.checkAppointment)
			r.Get("/export", h.exportAppointments)
			r.Get("/{id}", h.getAppointment)
			r.Put("/{id}", h.updateAppointment)
			r.Delete("/{id}", h.deleteAppointment)
			r.Post("/{id}/cancel", h.cancelAppointment)
			r.Post("/{id}/complete", h.completeAppointment)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/day", h.dayView)
			r.Get("/week", h.weekView)
			r.Get("/therapists", h.therapistGrid)
			r.Get("/stats", h.scheduleStats)
			r.Get("/conflicts", h.conflicts)
		})

		r.Get("/dashboard", h.showDashboard)
		r.Get("/dashboard/report", h.report)
	})

	return r
}
