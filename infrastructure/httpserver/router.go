// Package httpserver wires the chi router that fronts the C6 Dispatch
// Engine, generalizing the teacher's (nonexistent) HTTP surface from the
// pack's chi-based services.
package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ca-srg/tosage/infrastructure/metrics"
	"github.com/ca-srg/tosage/interface/httpapi"
)

// NewRouter assembles the full HTTP surface: chat completions, model
// listing, and a /metrics scrape endpoint.
func NewRouter(chatHandler *httpapi.ChatHandler, modelsHandler *httpapi.ModelsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Post("/v1/chat/completions", chatHandler.ServeHTTP)
	r.Get("/v1/models", modelsHandler.ServeHTTP)
	r.Handle("/metrics", metrics.Handler())

	return r
}
