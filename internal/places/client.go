// Package places talks to the Google Places (New) Text Search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
)

const (
	defaultBaseURL = "https://places.googleapis.com"
	searchTextPath = "/v1/places:searchText"

	// summaryFieldMask covers serving needs; detailFieldMask adds what
	// the catalog pipeline stores.
	summaryFieldMask = "places.id,places.displayName,places.formattedAddress,places.location,places.rating,places.userRatingCount,places.types,places.primaryType"
	detailFieldMask  = summaryFieldMask + ",places.websiteUri,places.nationalPhoneNumber,places.businessStatus,places.editorialSummary,places.reviews"

	// maxResultCount is capped by the API.
	maxResultCap = 20
)

// ErrUpstream marks a failure of the Places API itself, transport or
// non-2xx. Handlers map it to HTTP 502; it is never a rate limit denial.
var ErrUpstream = errors.New("google places error")

// Client is a Places API client. It performs no admission control; the
// retrieval layer sequences cache, limiter, and fetch around it.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Places client using apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
}

type searchTextResponse struct {
	Places []gplace `json:"places"`
}

type localizedText struct {
	Text string `json:"text"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type greview struct {
	Text *localizedText `json:"text"`
}

type gplace struct {
	ID               string         `json:"id"`
	DisplayName      localizedText  `json:"displayName"`
	FormattedAddress string         `json:"formattedAddress"`
	Location         latLng         `json:"location"`
	Rating           *float64       `json:"rating"`
	UserRatingCount  int            `json:"userRatingCount"`
	Types            []string       `json:"types"`
	PrimaryType      string         `json:"primaryType"`
	WebsiteURI       string         `json:"websiteUri"`
	NationalPhone    string         `json:"nationalPhoneNumber"`
	BusinessStatus   string         `json:"businessStatus"`
	EditorialSummary *localizedText `json:"editorialSummary"`
	Reviews          []greview      `json:"reviews"`
}

// SearchText runs a text search and returns compact place summaries.
func (c *Client) SearchText(ctx context.Context, query string, maxResults int) ([]models.PlaceSummary, error) {
	raw, err := c.searchText(ctx, query, maxResults, summaryFieldMask)
	if err != nil {
		return nil, err
	}
	out := make([]models.PlaceSummary, 0, len(raw))
	for _, p := range raw {
		out = append(out, models.PlaceSummary{
			PlaceID:     p.ID,
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddress,
			Lat:         p.Location.Latitude,
			Lng:         p.Location.Longitude,
			Rating:      p.Rating,
			RatingCount: p.UserRatingCount,
			Category:    p.PrimaryType,
		})
	}
	return out, nil
}

// FetchDetailed runs a text search with the pipeline field mask and maps
// the results to catalog places (without embeddings). The editorial
// summary becomes the description; review texts are collected in order.
func (c *Client) FetchDetailed(ctx context.Context, query string, maxResults int) ([]catalog.Place, error) {
	raw, err := c.searchText(ctx, query, maxResults, detailFieldMask)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Place, 0, len(raw))
	for _, p := range raw {
		place := catalog.Place{
			PlaceID:        p.ID,
			Name:           p.DisplayName.Text,
			Address:        p.FormattedAddress,
			Lat:            p.Location.Latitude,
			Lng:            p.Location.Longitude,
			Rating:         p.Rating,
			RatingCount:    p.UserRatingCount,
			Types:          p.Types,
			Website:        p.WebsiteURI,
			Phone:          p.NationalPhone,
			BusinessStatus: p.BusinessStatus,
		}
		if p.EditorialSummary != nil {
			place.Description = p.EditorialSummary.Text
		}
		for _, r := range p.Reviews {
			if r.Text != nil && r.Text.Text != "" {
				place.Reviews = append(place.Reviews, r.Text.Text)
			}
		}
		out = append(out, place)
	}
	return out, nil
}

func (c *Client) searchText(ctx context.Context, query string, maxResults int, fieldMask string) ([]gplace, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > maxResultCap {
		maxResults = maxResultCap
	}

	body, err := json.Marshal(searchTextRequest{TextQuery: query, MaxResultCount: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchTextPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("places API error",
			zap.Int("status", resp.StatusCode),
			zap.String("query", query))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(excerpt))
	}

	var parsed searchTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}
	return parsed.Places, nil
}
