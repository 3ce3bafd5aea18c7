/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/providers/*   Roster management and uploads
  /api/market/*      Benchmark rows and the synonym table
  /api/scenarios/*   Saved what-ifs
  /api/model         Ad-hoc evaluation
  /api/batch/runs/*  Batch runs
  /api/presets       Built-in scenario templates
  /api/demo/*        Demo dataset loaders (dev only)
  /api/reset         Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Provider routes
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.Post("/", h.CreateProvider)
			r.Post("/upload", h.UploadProviders)
			r.Get("/{id}", h.GetProvider)
			r.Delete("/{id}", h.DeleteProvider)
		})

		// Market benchmark routes
		r.Route("/market", func(r chi.Router) {
			r.Get("/", h.ListMarketRows)
			r.Post("/", h.CreateMarketRows)
			r.Post("/upload", h.UploadMarketRows)
			r.Get("/synonyms", h.GetSynonyms)
			r.Put("/synonyms", h.PutSynonyms)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)
			r.Get("/{id}", h.GetScenario)
			r.Delete("/{id}", h.DeleteScenario)
			r.Patch("/{id}/inputs", h.PatchScenarioInputs)
			r.Post("/{id}/model", h.ModelScenario)
		})

		// Ad-hoc modeling
		r.Post("/model", h.ModelAdhoc)

		// Batch run routes
		r.Route("/batch/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.StartRun)
			r.Get("/{id}", h.GetRun)
			r.Get("/{id}/results", h.GetRunResults)
			r.Get("/{id}/export", h.ExportRun)
			r.Delete("/{id}", h.CancelRun)
		})

		// Presets
		r.Get("/presets", h.ListPresets)

		// Demo routes
		r.Route("/demo", func(r chi.Router) {
			r.Get("/", h.ListDemoDatasets)
			r.Post("/load", h.LoadDemoDataset)
		})
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
