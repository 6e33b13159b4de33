package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medspa-sms-triage/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-sms-triage/internal/http/middleware"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	MessagingHandler *messaging.Handler
	AdminHandler     *handlers.AdminTriageHandler
	AdminAuthSecret  string
	AdminCORSOrigins []string
	MetricsHandler   http.Handler
	// WebhookLimiter throttles provider callbacks per client address. Nil disables it.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.MessagingHandler == nil {
		panic("router: messaging handler required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", cfg.MessagingHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Provider callbacks. The legacy path is kept for numbers still pointed at it.
	r.Group(func(webhooks chi.Router) {
		if cfg.WebhookLimiter != nil {
			webhooks.Use(httpmiddleware.RateLimit(cfg.WebhookLimiter))
		}
		webhooks.Post("/webhooks/twilio/sms", cfg.MessagingHandler.TwilioWebhook)
		webhooks.Post("/messaging/twilio/webhook", cfg.MessagingHandler.TwilioWebhook)
	})

	if cfg.AdminHandler != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			if len(cfg.AdminCORSOrigins) > 0 {
				admin.Use(httpmiddleware.AdminCORS(cfg.AdminCORSOrigins))
			}
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
			admin.Get("/conversations/{phone}", cfg.AdminHandler.GetConversation)
			admin.Get("/conversations/{phone}/interactions", cfg.AdminHandler.ListInteractions)
			admin.Get("/messages/{sid}", cfg.AdminHandler.GetMessage)
		})
	}

	return r
}
