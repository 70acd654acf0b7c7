package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the table handler routes.
func NewRouter(h *TableHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tables", h.ListTables)
		r.Get("/tables/{table}/columns", h.ListColumns)
		r.Get("/tables/{table}/count", h.Count)
		r.Get("/tables/{table}/rows", h.Rows)
	})

	return r
}
