package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/assistant"
	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/internal/compliance"
	httpmiddleware "github.com/MarkKevinCanonoy/Web-Project/internal/http/middleware"
	"github.com/MarkKevinCanonoy/Web-Project/internal/users"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Verifier           httpmiddleware.TokenVerifier
	Appointments       *appointments.Handler
	Users              *users.Handler
	Assistant          *assistant.Handler
	Audit              *compliance.Handler
	Live               http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Optional limiters for login/registration and chat.
	AuthLimiter *httpmiddleware.RateLimiter
	ChatLimiter *httpmiddleware.RateLimiter

	HealthChecks map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints
	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.Live != nil {
		r.Get("/ws/appointments", cfg.Live.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Compress(5))
		api.Get("/slots", cfg.Appointments.Slots)

		if cfg.Users != nil {
			api.Group(func(public chi.Router) {
				public.Use(limit(cfg.AuthLimiter))
				public.Post("/auth/register", cfg.Users.Register)
				public.Post("/auth/login", cfg.Users.Login)
			})
		}

		api.Group(func(authed chi.Router) {
			authed.Use(httpmiddleware.RequireAuth(cfg.Verifier))

			authed.Route("/appointments", func(ar chi.Router) {
				ar.Get("/", cfg.Appointments.List)
				ar.Post("/", cfg.Appointments.Create)
				ar.Route("/{id}", func(one chi.Router) {
					one.Get("/", cfg.Appointments.Get)
					one.Put("/reschedule", cfg.Appointments.Reschedule)
					one.Put("/cancel", cfg.Appointments.Cancel)
					one.With(httpmiddleware.RequireRole(auth.RoleAdmin, auth.RoleNurse, auth.RoleDoctor)).
						Put("/status", cfg.Appointments.UpdateStatus)
					one.With(httpmiddleware.RequireRole(auth.RoleAdmin, auth.RoleDoctor)).
						Put("/diagnosis", cfg.Appointments.Diagnose)
					one.With(httpmiddleware.RequireRole(auth.RoleAdmin)).
						Delete("/", cfg.Appointments.Delete)
					if cfg.Audit != nil {
						one.With(httpmiddleware.RequireRole(auth.RoleAdmin)).
							Get("/audit", cfg.Audit.History)
					}
				})
			})

			if cfg.Assistant != nil {
				authed.With(limit(cfg.ChatLimiter)).Post("/chat", cfg.Assistant.Chat)
			}

			if cfg.Users != nil {
				authed.Get("/auth/me", cfg.Users.Me)
				authed.Group(func(admin chi.Router) {
					admin.Use(httpmiddleware.RequireRole(auth.RoleAdmin))
					admin.Get("/users", cfg.Users.List)
					admin.Delete("/users/{id}", cfg.Users.Delete)
					admin.Post("/admin/users", cfg.Users.Create)
				})
			}
		})
	})

	return r
}

// limit applies a rate limiter when one is configured.
func limit(limiter *httpmiddleware.RateLimiter) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return httpmiddleware.RateLimit(limiter)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
