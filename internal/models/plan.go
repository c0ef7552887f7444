package models

import (
	"fmt"
	"strings"
)

// SearchParams carries the validated query parameters of a search request.
type SearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate rejects blank queries and normalizes the limit into [1, 20],
// defaulting to 10 when unset.
func (p *SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.Limit > 20 {
		p.Limit = 20
	}
	return nil
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []PlaceSummary `json:"results"`
}

// VibeResponse is the body of GET /vibe.
type VibeResponse struct {
	Query   string      `json:"query"`
	Results []VibeMatch `json:"results"`
}

// PlanRequest is the body of POST /plan.
type PlanRequest struct {
	Query string `json:"query"`
}

// DayStop groups the places suggested for one day in one city.
type DayStop struct {
	Day    int            `json:"day"`
	City   string         `json:"city"`
	Places []PlaceSummary `json:"places"`
}

// PlanResponse is the body of POST /plan: a day-by-day itinerary.
type PlanResponse struct {
	Query string    `json:"query"`
	Stops []DayStop `json:"stops"`
}
