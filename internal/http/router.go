// Package httpserver wires the notifier's HTTP surface.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/synkhq/synk/internal/config"
	"github.com/synkhq/synk/internal/http/ratelimit"
	"github.com/synkhq/synk/internal/mail"
	"github.com/synkhq/synk/internal/metrics"
)

// NewRouter wires the notifier routes.
func NewRouter(cfg *config.Config, mailer mail.Sender) http.Handler {
	r := chi.NewRouter()

	// Mail endpoints fan out to SMTP, so keep the per-IP budget small.
	mailRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(1), 5, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	if cfg.CORSAllowedOrigin != "" {
		r.Use(corsMiddleware(cfg.CORSAllowedOrigin))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	h := NewHandler(mailer, cfg.SiteURL)
	r.Group(func(r chi.Router) {
		r.Use(mailRateLimiter.Middleware())
		r.Post("/welcome-email", h.WelcomeEmail)
		r.Post("/task-reminder", h.TaskReminder)
		r.Post("/weekly-digest", h.WeeklyDigest)
	})

	return r
}

// corsMiddleware admits the web app origin. No wildcard, so the header can
// coexist with credentialed requests. Preflights get 204.
func corsMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
