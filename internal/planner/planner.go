// Package planner turns a natural-language trip request into a
// structured search outline via an OpenAI-compatible chat API.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.2

	outlineTTL     = 24 * time.Hour
	outlineCleanup = time.Hour
)

const systemPrompt = `You are a travel planning assistant. Given a natural language trip request, extract structured information to help plan the trip.

You must respond with valid JSON only, no other text. The JSON should have this structure:
{
  "duration_days": <number>,
  "cities": ["city1", "city2", ...],
  "searches": [
    {
      "city": "city name",
      "day": <day number>,
      "queries": ["search query 1", "search query 2"],
      "why": {"query1": "reason this is recommended", "query2": "reason"}
    }
  ]
}

Guidelines:
- Extract duration from the query (e.g., "7 days", "weekend" = 2 days, "week" = 7 days)
- If the query gives no duration, default to 3 days; never plan more than 7 days
- Choose appropriate cities for the region/route mentioned
- Create specific search queries that will work well with Google Places (e.g., "honky tonk bars Austin TX")
- Provide a brief "why" explanation for each type of place
- Spread cities across the days appropriately
- Limit to 2-3 search queries per city to keep results focused
- Always include the state/region in search queries for better results`

// ErrBadPlanJSON means the model answered, but not with the JSON shape
// we asked for. Handlers map it to HTTP 500.
var ErrBadPlanJSON = errors.New("failed to parse plan response")

// ErrUpstream marks transport or status failures of the chat API
// itself. Handlers map it to HTTP 502.
var ErrUpstream = errors.New("openai API error")

// CitySearch is one city/day block of the outline.
type CitySearch struct {
	City    string            `json:"city"`
	Day     int               `json:"day"`
	Queries []string          `json:"queries"`
	Why     map[string]string `json:"why"`
}

// TripOutline is the parsed plan skeleton returned by the model.
type TripOutline struct {
	DurationDays int          `json:"duration_days"`
	Cities       []string     `json:"cities"`
	Searches     []CitySearch `json:"searches"`
}

// Client calls the chat API and caches parsed outlines. A cached
// outline is served without touching the limiter; only valid outlines
// are stored.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	http        *http.Client
	limiter     *ratelimit.Limiter
	outlines    *gocache.Cache
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, for tests or
// OpenAI-compatible servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithModel overrides the chat model.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a planner client guarded by limiter.
func NewClient(apiKey string, limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		temperature: defaultTemperature,
		http:        &http.Client{Timeout: 60 * time.Second},
		limiter:     limiter,
		outlines:    gocache.New(outlineTTL, outlineCleanup),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// LimiterStatus reports the planner limiter's window usage.
func (c *Client) LimiterStatus() ratelimit.Status { return c.limiter.Status() }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Outline returns the search outline for query, serving repeats from
// the outline cache. A miss consults the limiter, calls the model, and
// caches the parsed result.
func (c *Client) Outline(ctx context.Context, query string) (*TripOutline, error) {
	key := cache.Normalize(query)
	if v, found := c.outlines.Get(key); found {
		c.logger.Debug("outline cache hit", zap.String("query", key))
		return v.(*TripOutline), nil
	}

	allowed, reason := c.limiter.Check()
	if !allowed {
		return nil, &ratelimit.DeniedError{Resource: c.limiter.Name(), Reason: reason}
	}

	outline, err := c.complete(ctx, query)
	if err != nil {
		return nil, err
	}

	c.outlines.Set(key, outline, gocache.DefaultExpiration)
	c.limiter.Record()
	c.logger.Info("trip outline generated",
		zap.String("query", query),
		zap.Int("duration_days", outline.DurationDays),
		zap.Int("searches", len(outline.Searches)))
	return outline, nil
}

func (c *Client) complete(ctx context.Context, query string) (*TripOutline, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Plan this trip: " + query},
		},
		Temperature: c.temperature,
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(excerpt))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrUpstream)
	}

	var outline TripOutline
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &outline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPlanJSON, err)
	}
	if len(outline.Searches) == 0 {
		return nil, fmt.Errorf("%w: outline has no searches", ErrBadPlanJSON)
	}
	return &outline, nil
}
