package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/places"
	"github.com/henryzhan013/roadtrip-planner/internal/planner"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
	"github.com/henryzhan013/roadtrip-planner/internal/vibe"
)

// searchParams parses and validates the query string of GET /search and
// GET /vibe.
func searchParams(r *http.Request) (*models.SearchParams, error) {
	params := &models.SearchParams{Query: r.URL.Query().Get("query")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("limit must be an integer")
		}
		params.Limit = n
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := searchParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.places.Configured() {
		s.respondError(w, http.StatusServiceUnavailable, "Google Places API key not configured")
		return
	}

	s.logger.Debug("search request", zap.String("query", params.Query), zap.Int("limit", params.Limit))
	results, err := s.search.Search(r.Context(), params.Query, params.Limit)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SearchResponse{Query: params.Query, Results: results})
}

func (s *Server) handleVibe(w http.ResponseWriter, r *http.Request) {
	params, err := searchParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Debug("vibe request", zap.String("query", params.Query), zap.Int("limit", params.Limit))
	results, err := s.vibe.Search(r.Context(), params.Query, params.Limit)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.VibeResponse{Query: params.Query, Results: results})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	if !s.planner.Configured() {
		s.respondError(w, http.StatusServiceUnavailable, "OpenAI API key not configured")
		return
	}
	if !s.places.Configured() {
		s.respondError(w, http.StatusServiceUnavailable, "Google Places API key not configured")
		return
	}

	s.logger.Debug("plan request", zap.String("query", req.Query))
	plan, err := s.trip.BuildPlan(r.Context(), req.Query)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:           "healthy",
		OpenAIConfigured: s.planner.Configured(),
		GoogleConfigured: s.places.Configured(),
		VibeReady:        s.vibe.Ready(),
		RateLimits: map[string]ratelimit.Status{
			"openai":    s.planner.LimiterStatus(),
			"google":    s.search.LimiterStatus(),
			"embedding": s.vibe.LimiterStatus(),
		},
		Caches: map[string]models.CacheStats{
			"search": s.search.CacheStats(),
			"vibe":   s.vibe.CacheStats(),
		},
	}
	if info := s.vibe.CatalogInfo(); info != nil {
		resp.Catalog = info
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondServiceError maps service-layer failures to HTTP statuses:
// admission denials to 429, a missing catalog to 503, unusable LLM
// output to 500, and upstream API failures to 502.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var denied *ratelimit.DeniedError
	switch {
	case errors.As(err, &denied):
		s.respondError(w, http.StatusTooManyRequests, denied.Reason)
	case errors.Is(err, vibe.ErrNotReady):
		s.respondError(w, http.StatusServiceUnavailable, "vibe search not available: no catalog loaded")
	case errors.Is(err, planner.ErrBadPlanJSON):
		s.logger.Error("plan parse failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, places.ErrUpstream), errors.Is(err, planner.ErrUpstream):
		s.logger.Error("upstream API failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
