// Package trip assembles day-by-day road-trip plans from an LLM outline
// and rate-limited place searches.
package trip

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/planner"
)

// placesPerQuery bounds each outline query's fan-out so one plan stays
// within a few limiter slots.
const placesPerQuery = 3

// Outliner produces the plan skeleton.
type Outliner interface {
	Outline(ctx context.Context, query string) (*planner.TripOutline, error)
}

// PlaceSearcher answers individual place queries.
type PlaceSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.PlaceSummary, error)
}

// Service builds plans.
type Service struct {
	outliner Outliner
	places   PlaceSearcher
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires an outliner and a place searcher into a plan builder.
func NewService(outliner Outliner, places PlaceSearcher, opts ...Option) *Service {
	s := &Service{
		outliner: outliner,
		places:   places,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPlan turns a natural-language request into an itinerary. Outline
// errors are fatal; individual place searches that fail or are denied
// are logged and skipped, and blocks left without places are dropped.
// Stops come back sorted by day, outline order preserved within a day.
func (s *Service) BuildPlan(ctx context.Context, query string) (*models.PlanResponse, error) {
	outline, err := s.outliner.Outline(ctx, query)
	if err != nil {
		return nil, err
	}

	stops := make([]models.DayStop, 0, len(outline.Searches))
	for _, block := range outline.Searches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var cityPlaces []models.PlaceSummary
		for _, q := range block.Queries {
			results, err := s.places.Search(ctx, q, placesPerQuery)
			if err != nil {
				s.logger.Warn("plan search skipped",
					zap.String("city", block.City),
					zap.String("query", q),
					zap.Error(err))
				continue
			}
			why := block.Why[q]
			for _, r := range results {
				r.Why = why
				cityPlaces = append(cityPlaces, r)
			}
		}

		if len(cityPlaces) > 0 {
			stops = append(stops, models.DayStop{Day: block.Day, City: block.City, Places: cityPlaces})
		}
	}

	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Day < stops[j].Day })

	s.logger.Info("plan built",
		zap.String("query", query),
		zap.Int("stops", len(stops)))
	return &models.PlanResponse{Query: query, Stops: stops}, nil
}
