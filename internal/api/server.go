package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/collectline/dunlin/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, handler *Handler) *Server {
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Filter field catalog
	router.Get("/fields", handler.ListFields)

	// Master data
	router.Get("/master-data/{category}", handler.ListMasterData)
	router.Post("/master-data/{category}", handler.SaveMasterDataEntry)

	// Template catalog
	router.Get("/templates", handler.ListTemplates)
	router.Get("/templates/{id}", handler.GetTemplate)
	router.Post("/templates", handler.CreateTemplate)

	// Strategy management
	router.Get("/strategies", handler.ListStrategies)
	router.Get("/strategies/{id}", handler.GetStrategy)
	router.Get("/strategies/{id}/draft", handler.GetStrategyDraft)
	router.Post("/strategies", handler.CreateStrategy)
	router.Put("/strategies/{id}", handler.UpdateStrategy)
	router.Delete("/strategies/{id}", handler.DeleteStrategy)

	// Execution
	router.Post("/strategies/{id}/trigger", handler.TriggerStrategy)
	router.Get("/strategies/{id}/runs", handler.ListStrategyRuns)
	router.Get("/runs/{id}", handler.GetRun)

	// Batch operations
	router.Post("/batches", handler.SubmitBatch)
	router.Get("/batches/{id}", handler.GetBatch)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
