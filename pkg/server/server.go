package server

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/repository"
	"github.com/vetscan/vetscan/pkg/usecase/analyze"
)

// Server exposes the dashboard API: analysis history and one-shot
// diagnosis. Responses are JSON only; rendering belongs to the client.
type Server struct {
	analyzer *analyze.UseCase
	repo     repository.Repository
	location *model.Coordinates

	// analyzing gates one-shot requests so overlapping analyses cannot
	// interleave their history truncation. A concurrent live monitor is
	// not serialized against this gate.
	analyzing atomic.Bool
}

type Option func(*Server)

// WithLocation sets the coordinates attached to results when the
// request carries none.
func WithLocation(loc *model.Coordinates) Option {
	return func(s *Server) {
		s.location = loc
	}
}

func New(analyzer *analyze.UseCase, repo repository.Repository, opts ...Option) *Server {
	s := &Server{
		analyzer: analyzer,
		repo:     repo,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler builds the chi router for the API surface.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	mux.Get("/api/health", s.handleHealth)
	mux.Route("/api/history", func(rt chi.Router) {
		rt.Get("/", s.wrap(s.handleHistoryList))
		rt.Delete("/", s.wrap(s.handleHistoryClear))
	})
	mux.Post("/api/analyze", s.wrap(s.handleAnalyze))

	return mux
}
