// Package server exposes Loom over HTTP: template and dataset CRUD, single
// runs, batch jobs, and job progress streaming.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/loomworks/loom/batch"
	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/dataset"
	"github.com/loomworks/loom/results"
	"github.com/loomworks/loom/run"
	"github.com/loomworks/loom/store"
)

// Server is the Loom HTTP server
type Server struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	templates *store.Store
	datasets  *dataset.Store
	jobs      *batch.Store
	orch      *batch.Orchestrator
	engine    *run.Engine
	saver     *results.Saver
	mux       *http.ServeMux
}

// Deps bundles everything the server needs
type Deps struct {
	Config    *config.Config
	Logger    *zap.SugaredLogger
	Templates *store.Store
	Datasets  *dataset.Store
	Jobs      *batch.Store
	Orch      *batch.Orchestrator
	Engine    *run.Engine
	Saver     *results.Saver
}

// New builds the server and registers its routes
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		cfg:       deps.Config,
		logger:    logger,
		templates: deps.Templates,
		datasets:  deps.Datasets,
		jobs:      deps.Jobs,
		orch:      deps.Orch,
		engine:    deps.Engine,
		saver:     deps.Saver,
		mux:       http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))

	s.mux.HandleFunc("/api/templates", s.corsMiddleware(s.handleTemplates)) // List/create (GET/POST)
	s.mux.HandleFunc("/api/templates/", s.corsMiddleware(s.handleTemplate)) // Get/update/delete/versions

	s.mux.HandleFunc("/api/datasets", s.corsMiddleware(s.handleDatasets)) // List/upload (GET/POST)
	s.mux.HandleFunc("/api/datasets/", s.corsMiddleware(s.handleDataset)) // Get/delete/records

	s.mux.HandleFunc("/api/run", s.corsMiddleware(s.handleRun))     // Single run (POST)
	s.mux.HandleFunc("/api/batch", s.corsMiddleware(s.handleBatch)) // Batch run (POST)

	s.mux.HandleFunc("/api/jobs/save", s.corsMiddleware(s.handleJobSave)) // Persist results (POST)
	s.mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.handleJob))         // Status/result/cancel

	s.mux.HandleFunc("/ws/jobs/", s.corsMiddleware(s.handleJobSocket)) // Progress streaming
}

// Handler returns the routed handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: s.mux}

	go func() {
		<-ctx.Done()
		s.logger.Infow("Shutting down HTTP server")
		httpServer.Shutdown(context.Background())
	}()

	s.logger.Infow("HTTP server listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// originAllowed checks an Origin header against the configured allow list
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// corsMiddleware sets CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
