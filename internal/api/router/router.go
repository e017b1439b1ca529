package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/villagestay/whatsapp-bot/internal/http/handlers"
	httpmiddleware "github.com/villagestay/whatsapp-bot/internal/http/middleware"
	"github.com/villagestay/whatsapp-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	WebhookHandler *handlers.WebhookHandler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/", cfg.WebhookHandler.HealthCheck)
	r.Get("/webhook", cfg.WebhookHandler.HandleVerify)
	r.Post("/webhook", cfg.WebhookHandler.HandleInbound)
	r.Post("/send-message", cfg.WebhookHandler.SendTestMessage)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
