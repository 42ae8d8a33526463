package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/docbook-web/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/docbook-web/internal/http/middleware"
	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Public         *handlers.PublicHandler
	Admin          *handlers.AdminHandler
	Sessions       *session.Manager
	Cookie         httpmiddleware.CookieConfig
	RateLimiter    *httpmiddleware.RateLimiter
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/doctors", http.StatusFound)
	})

	r.Group(func(web chi.Router) {
		web.Use(httpmiddleware.Sessions(cfg.Sessions, cfg.Cookie, cfg.Logger))
		if cfg.RateLimiter != nil {
			web.Use(httpmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger))
		}

		// Public pages
		web.Get("/", cfg.Public.Home)
		web.Get("/doctors", cfg.Public.ListDoctors)
		web.Route("/doctors/{id}", func(d chi.Router) {
			d.Get("/", cfg.Public.DoctorDetail)
			d.Get("/book", cfg.Public.BookingForm)
			d.Post("/book", cfg.Public.BookingStep)
		})
		web.Get("/my-appointments", cfg.Public.MyAppointments)
		web.Post("/my-appointments", cfg.Public.SearchAppointments)

		// Admin panel
		web.Route("/admin", func(admin chi.Router) {
			admin.Use(noStore)
			admin.Get("/login", cfg.Admin.LoginForm)
			admin.Post("/login", cfg.Admin.Login)
			admin.Post("/logout", cfg.Admin.Logout)

			admin.Group(func(protected chi.Router) {
				protected.Use(httpmiddleware.RequireAdmin(handlers.AdminLoginPath))
				protected.Get("/", func(w http.ResponseWriter, req *http.Request) {
					http.Redirect(w, req, "/admin/dashboard", http.StatusFound)
				})
				protected.Get("/dashboard", cfg.Admin.Dashboard)
				protected.Get("/doctors", cfg.Admin.Doctors)
				protected.Post("/doctors", cfg.Admin.SaveDoctor)
				protected.Post("/doctors/{id}/toggle", cfg.Admin.ToggleDoctor)
				protected.Get("/appointments", cfg.Admin.Appointments)
				protected.Post("/appointments/{id}/status", cfg.Admin.SetAppointmentStatus)
			})
		})
	})

	return r
}
