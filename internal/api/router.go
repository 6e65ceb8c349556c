package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Router sets up the HTTP router with all routes and middleware
func Router(logger *zap.Logger, enqueuer TaskEnqueuer) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext(logger))
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	handlers := NewHandlers(logger, enqueuer)

	// Health check
	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/v1/images", func(r chi.Router) {
		r.Post("/build", handlers.BuildImage)
		r.Post("/push", handlers.PushImage)
	})

	return r
}
