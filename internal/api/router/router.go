package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking/internal/audit"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/internal/coupons"
	"github.com/wolfman30/clinic-booking/internal/doctors"
	"github.com/wolfman30/clinic-booking/internal/holidays"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/http/respond"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/internal/realtime"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	DoctorsHandler      *doctors.Handler
	AvailabilityHandler *availability.Handler
	HolidaysHandler     *holidays.Handler
	BookingsHandler     *bookings.Handler
	CouponsHandler      *coupons.Handler
	AuditHandler        *audit.Handler
	PaymentsWebhook     *payments.WebhookHandler
	Realtime            *realtime.Hub
	MetricsHandler      http.Handler
	RateLimiter         httpmiddleware.Limiter
	CORSAllowedOrigins  []string
	HealthChecks        map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.PaymentsWebhook != nil {
		r.Mount("/webhooks", cfg.PaymentsWebhook.Routes())
	}
	// Websocket upgrades must not see the compressing writer.
	if cfg.Realtime != nil {
		r.Mount("/ws", cfg.Realtime.Routes())
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.Compress(5))
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter, cfg.Logger))
		}

		api.Route("/api", func(pub chi.Router) {
			if cfg.DoctorsHandler != nil || cfg.AvailabilityHandler != nil {
				pub.Route("/doctors", func(d chi.Router) {
					if cfg.DoctorsHandler != nil {
						cfg.DoctorsHandler.RegisterPublicRoutes(d)
					}
					if cfg.AvailabilityHandler != nil {
						cfg.AvailabilityHandler.RegisterPublicRoutes(d)
					}
				})
			}
			if cfg.HolidaysHandler != nil {
				pub.Mount("/holidays", cfg.HolidaysHandler.PublicRoutes())
			}
			if cfg.BookingsHandler != nil {
				pub.Mount("/bookings", cfg.BookingsHandler.PublicRoutes())
			}
			if cfg.CouponsHandler != nil {
				pub.Mount("/coupons", cfg.CouponsHandler.PublicRoutes())
			}
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(audit.ActorMiddleware)
			if cfg.DoctorsHandler != nil || cfg.AvailabilityHandler != nil {
				admin.Route("/doctors", func(d chi.Router) {
					if cfg.DoctorsHandler != nil {
						cfg.DoctorsHandler.RegisterAdminRoutes(d)
					}
					if cfg.AvailabilityHandler != nil {
						cfg.AvailabilityHandler.RegisterAdminRoutes(d)
					}
				})
			}
			if cfg.HolidaysHandler != nil {
				admin.Mount("/holidays", cfg.HolidaysHandler.AdminRoutes())
			}
			if cfg.BookingsHandler != nil {
				admin.Mount("/bookings", cfg.BookingsHandler.AdminRoutes())
			}
			if cfg.CouponsHandler != nil {
				admin.Mount("/coupons", cfg.CouponsHandler.AdminRoutes())
			}
			if cfg.AuditHandler != nil {
				admin.Mount("/audit", cfg.AuditHandler.Routes())
			}
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		respond.JSON(w, status, body)
	}
}
