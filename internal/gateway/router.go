package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", s.handleHealth())
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Admin endpoints — auth required. Not mounted if no auth configured.
	if s.cfg.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(s.cfg.Auth))
			r.Get("/status", s.handleStatus())

			r.Route("/api", func(r chi.Router) {
				r.Route("/definitions", func(r chi.Router) {
					r.Get("/", s.handleListDefinitions())
					r.Post("/", s.handleCreateDefinition())
					r.Get("/{id}", s.handleGetDefinition())
					r.Put("/{id}", s.handleUpdateDefinition())
					r.Delete("/{id}", s.handleDeleteDefinition())
					r.Get("/{id}/executions", s.handleDefinitionExecutions())
				})

				r.Route("/bulk", func(r chi.Router) {
					r.Get("/", s.handleListBulks())
					r.Post("/", s.handleCreateBulk())
					r.Get("/{id}", s.handleGetBulk())
					r.Put("/{id}", s.handleUpdateBulk())
					r.Delete("/{id}", s.handleDeleteBulk())
				})

				r.Get("/executions", s.handleListExecutions())
				r.Post("/reconcile", s.handleReconcile())
			})

			if s.hub != nil {
				r.Get("/ws/executions", s.handleExecutionsFeed())
			}
		})
	}

	return r
}
