// Package models defines the request and response shapes served by the API.
package models

// PlaceSummary is the compact place record returned by text search and plans.
type PlaceSummary struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count"`
	Category    string   `json:"category"`
	Why         string   `json:"why,omitempty"`
}

// VibeMatch is a catalog place scored against a vibe query.
type VibeMatch struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Score       float64  `json:"score"`
}
