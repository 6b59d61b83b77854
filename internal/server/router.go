package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/taskdock/taskdock/internal/sync/transport"
)

// NewRouter builds the HTTP router for the sync peer. The route paths
// are shared constants with the client transport so the two sides
// cannot drift apart.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get(transport.HealthPath, h.Health)
	r.Post(transport.BatchPath, h.Batch)

	return r
}
