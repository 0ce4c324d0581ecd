// Package httpapi provides the operator-facing HTTP surface: health,
// corpus stats, diagnostic search, and the document verification and
// reindex endpoints. MCP stdio remains the tool-serving transport; this
// API exists so operators can review and administer the corpus without an
// MCP client attached.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/ingest"
	"github.com/clausevault/clausevault/internal/tools"
)

// Server is the HTTP server for the admin/diagnostic API.
type Server struct {
	service  *tools.Service
	catalog  *catalog.Catalog
	pipeline *ingest.Pipeline
	host     string
	port     int
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc *tools.Service, cat *catalog.Catalog, pipeline *ingest.Pipeline, host string, port int, logger *zap.Logger) *Server {
	return &Server{
		service:  svc,
		catalog:  cat,
		pipeline: pipeline,
		host:     host,
		port:     port,
		logger:   logger,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/products", s.handleListProducts)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Post("/api/v1/documents/{id}/verify", s.handleVerify)
	r.Post("/api/v1/documents/{id}/reject", s.handleReject)
	r.Post("/api/v1/documents/{id}/resubmit", s.handleResubmit)
	r.Post("/api/v1/reindex", s.handleReindex)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting admin API", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
