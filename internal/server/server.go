// Package server provides the HTTP API for CaseFlow.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/config"
	"github.com/nyaya/caseflow/internal/pipeline"
	"github.com/nyaya/caseflow/internal/search"
	"github.com/nyaya/caseflow/internal/storage"
)

// Server is the HTTP server for the CaseFlow API.
type Server struct {
	store  storage.Storage
	layout *storage.Layout
	coord  *pipeline.Coordinator
	index  *search.Index
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies. index may be nil
// when search is disabled.
func NewServer(
	store storage.Storage,
	layout *storage.Layout,
	coord *pipeline.Coordinator,
	index *search.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:  store,
		layout: layout,
		coord:  coord,
		index:  index,
		config: cfg,
		logger: logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	// Signed direct downloads carry their own credential in the URL.
	r.Get("/files/direct", s.handleDirectDownload)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/status", s.handleStatus)

		r.Post("/cases", s.handleCreateCase)
		r.Get("/cases", s.handleListCases)

		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Get("/", s.handleGetCase)
			r.Post("/uploads", s.handleUpload)
			r.Post("/parse", s.handleParse)

			r.Post("/checklist/generate", s.handleGenerateChecklist)
			r.Get("/checklist", s.handleGetChecklist)
			r.Get("/checklist/export", s.handleExportChecklist)
			r.Patch("/checklist/{itemID}", s.handleUpdateChecklistItem)

			r.Post("/diary/generate", s.handleGenerateDiary)
			r.Get("/diary/{page}", s.handleGetDiaryPage)
			r.Put("/diary/{page}", s.handleUpdateDiaryPage)
			r.Post("/diary/{page}/next", s.handleNextDiaryPage)

			r.Post("/report/generate", s.handleGenerateReport)

			r.Get("/files", s.handleListFiles)
			r.Get("/files/download", s.handleDownload)
			r.Post("/search", s.handleSearch)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// respondForError maps domain errors onto HTTP statuses.
func (s *Server) respondForError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, caseerr.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, caseerr.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, caseerr.ErrStageOrder), errors.Is(err, caseerr.ErrMissingDependency):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, caseerr.ErrParse):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
