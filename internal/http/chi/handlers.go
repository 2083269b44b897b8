package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/yummyorder/whatsapp-sandbox/sandbox"
)

// Handlers sets up the sandbox HTTP surface: the simulated provider webhook
// endpoint plus the admin API used to inspect and tune the simulation.
func Handlers(ctx context.Context, sb *sandbox.Sandbox, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("whatsapp-sandbox", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// The webhook endpoint the provider (real or simulated) calls.
	r.Handle("/api/whatsapp/webhook", webhookEndpoint(sb))

	// Admin API
	r.Route("/v1/webhook", func(r chi.Router) {
		r.Get("/state", getState(sb).ServeHTTP)
		r.Get("/config", getConfig(sb).ServeHTTP)
		r.Patch("/config", patchConfig(sb).ServeHTTP)
		r.Post("/config/verify-token", regenerateVerifyToken(sb).ServeHTTP)
		r.Post("/test-messages", postTestMessage(sb).ServeHTTP)
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	return r
}
