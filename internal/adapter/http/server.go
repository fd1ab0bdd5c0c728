package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-proximity-service/internal/catalog"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

// WarningService resolves points and composes warnings.
type WarningService interface {
	Nearest(point domain.Geo) (domain.NearestResult, bool, bool, error)
	Evaluate(ctx context.Context, session domain.Session, point domain.Geo, opts warning.Options) (domain.Warning, domain.Session, error)
}

// HazardCatalog exposes the loaded hazard collections.
type HazardCatalog interface {
	Snapshot() (*catalog.Snapshot, error)
	Load(ctx context.Context) error
	Resolver() *domain.Resolver
}

// Dependencies are the collaborators behind the API routes. Geocoder is optional.
type Dependencies struct {
	Warnings WarningService
	Catalog  HazardCatalog
	Geocoder domain.Geocoder
	Ready    sharedobs.ReadinessChecker
}

// Server exposes the hazard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Dependencies
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, deps Dependencies, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/nearest", s.handleNearest)
	mux.HandleFunc("POST /v1/warnings", s.handleWarning)
	mux.HandleFunc("GET /v1/hazards", s.handleHazards)
	mux.HandleFunc("POST /v1/reload", s.handleReload)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Readiness combines checkers; every one must pass.
type Readiness []sharedobs.ReadinessChecker

func (rs Readiness) CheckReadiness(ctx context.Context) error {
	for _, r := range rs {
		if err := r.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
