// Package server provides the HTTP API for the roadtrip planner.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/config"
	"github.com/henryzhan013/roadtrip-planner/internal/places"
	"github.com/henryzhan013/roadtrip-planner/internal/planner"
	"github.com/henryzhan013/roadtrip-planner/internal/retrieval"
	"github.com/henryzhan013/roadtrip-planner/internal/trip"
	"github.com/henryzhan013/roadtrip-planner/internal/vibe"
)

// Server is the HTTP server for the roadtrip API.
type Server struct {
	search  *retrieval.PlacesService
	vibe    *vibe.Service
	trip    *trip.Service
	planner *planner.Client
	places  *places.Client
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	search *retrieval.PlacesService,
	vibeSvc *vibe.Service,
	tripSvc *trip.Service,
	plannerClient *planner.Client,
	placesClient *places.Client,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:  search,
		vibe:    vibeSvc,
		trip:    tripSvc,
		planner: plannerClient,
		places:  placesClient,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	// The demo frontend is served separately; allow any origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/search", s.handleSearch)
	r.Get("/vibe", s.handleVibe)
	r.Post("/plan", s.handlePlan)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
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
