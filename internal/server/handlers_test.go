package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
	"github.com/henryzhan013/roadtrip-planner/internal/config"
	"github.com/henryzhan013/roadtrip-planner/internal/embedding"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/places"
	"github.com/henryzhan013/roadtrip-planner/internal/planner"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
	"github.com/henryzhan013/roadtrip-planner/internal/retrieval"
	"github.com/henryzhan013/roadtrip-planner/internal/trip"
	"github.com/henryzhan013/roadtrip-planner/internal/vibe"
)

type fakeSearcher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSearcher) SearchText(ctx context.Context, query string, maxResults int) ([]models.PlaceSummary, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make([]models.PlaceSummary, maxResults)
	for i := range out {
		out[i] = models.PlaceSummary{
			PlaceID: fmt.Sprintf("%s-%d", query, i),
			Name:    fmt.Sprintf("Result %d for %s", i, query),
		}
	}
	return out, nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOutliner struct {
	outline *planner.TripOutline
	err     error
}

func (f *fakeOutliner) Outline(ctx context.Context, query string) (*planner.TripOutline, error) {
	return f.outline, f.err
}

// testVibeService builds a ready vibe service over a three-place mock
// catalog embedded with emb.
func testVibeService(t *testing.T, emb embedding.Embedder) *vibe.Service {
	t.Helper()
	names := []string{"Broken Spoke", "Continental Club", "Franklin Barbecue"}
	cat := &catalog.Catalog{Model: "mock", EmbeddingDimension: emb.Dimensions()}
	for i, name := range names {
		vec, err := emb.Embed(context.Background(), name)
		if err != nil {
			t.Fatalf("failed to embed %q: %v", name, err)
		}
		cat.Places = append(cat.Places, catalog.Place{
			PlaceID:   fmt.Sprintf("p%d", i),
			Name:      name,
			Embedding: vec,
		})
	}
	cat.TotalPlaces = len(cat.Places)

	svc := vibe.NewService(emb, ratelimit.New("embedding", 60, 1000), cache.New[[]models.VibeMatch](time.Minute), zap.NewNop())
	idx := vibe.NewIndex(cat)
	svc.SetIndex(idx)
	return svc
}

type testServerOptions struct {
	googleKey   string
	openaiKey   string
	outline     *planner.TripOutline
	outlineErr  error
	googleLimit int
	vibeReady   bool
	embedder    embedding.Embedder
}

func newTestServer(t *testing.T, opts testServerOptions) (*Server, *fakeSearcher) {
	t.Helper()
	if opts.googleLimit == 0 {
		opts.googleLimit = 60
	}
	if opts.embedder == nil {
		opts.embedder = embedding.NewMockEmbedder(32)
	}

	searcher := &fakeSearcher{}
	searchSvc := retrieval.NewPlacesService(
		searcher,
		ratelimit.New("google", opts.googleLimit, 1000),
		cache.New[[]models.PlaceSummary](time.Minute),
	)

	var vibeSvc *vibe.Service
	if opts.vibeReady {
		vibeSvc = testVibeService(t, opts.embedder)
	} else {
		vibeSvc = vibe.NewService(opts.embedder, ratelimit.New("embedding", 60, 1000),
			cache.New[[]models.VibeMatch](time.Minute), zap.NewNop())
	}

	plannerClient := planner.NewClient(opts.openaiKey, ratelimit.New("openai", 60, 1000))
	tripSvc := trip.NewService(&fakeOutliner{outline: opts.outline, err: opts.outlineErr}, searchSvc)
	placesClient := places.NewClient(opts.googleKey)

	srv := NewServer(searchSvc, vibeSvc, tripSvc, plannerClient, placesClient,
		&config.ServerConfig{Host: "localhost", Port: 8080}, zap.NewNop())
	return srv, searcher
}

func TestHandleSearch(t *testing.T) {
	srv, searcher := newTestServer(t, testServerOptions{googleKey: "g-key"})

	r := httptest.NewRequest(http.MethodGet, "/search?query=bbq+austin&limit=2", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var out models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Query != "bbq austin" {
		t.Errorf("echoed query: got %q", out.Query)
	}
	if len(out.Results) != 2 {
		t.Errorf("results: got %d, want 2", len(out.Results))
	}

	// The identical request is served from cache.
	w = httptest.NewRecorder()
	srv.handleSearch(w, httptest.NewRequest(http.MethodGet, "/search?query=bbq+austin&limit=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cached status: got %d", w.Code)
	}
	if searcher.callCount() != 1 {
		t.Errorf("expected 1 upstream call, got %d", searcher.callCount())
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{googleKey: "g-key"})

	for _, target := range []string{"/search", "/search?query=%20%20"} {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		srv.handleSearch(w, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want 400", target, w.Code)
		}
	}
}

func TestHandleSearch_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{googleKey: "g-key"})

	r := httptest.NewRequest(http.MethodGet, "/search?query=bbq&limit=plenty", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Error, "integer") {
		t.Errorf("error message: got %q", out.Error)
	}
}

func TestHandleSearch_NoAPIKey(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{googleKey: ""})

	r := httptest.NewRequest(http.MethodGet, "/search?query=bbq", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Error != "Google Places API key not configured" {
		t.Errorf("error message: got %q", out.Error)
	}
}

func TestHandleSearch_RateLimited(t *testing.T) {
	srv, searcher := newTestServer(t, testServerOptions{googleKey: "g-key", googleLimit: 1})

	w := httptest.NewRecorder()
	srv.handleSearch(w, httptest.NewRequest(http.MethodGet, "/search?query=first", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first search: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.handleSearch(w, httptest.NewRequest(http.MethodGet, "/search?query=second", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", w.Code)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Error, "minute") {
		t.Errorf("expected minute-window reason, got %q", out.Error)
	}
	if searcher.callCount() != 1 {
		t.Errorf("denied request must not reach upstream, got %d calls", searcher.callCount())
	}
}

func TestHandleVibe(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{vibeReady: true})

	r := httptest.NewRequest(http.MethodGet, "/vibe?query=Continental+Club&limit=2", nil)
	w := httptest.NewRecorder()
	srv.handleVibe(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var out models.VibeResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(out.Results))
	}
	if out.Results[0].Name != "Continental Club" {
		t.Errorf("top result: got %q", out.Results[0].Name)
	}
	if out.Results[0].Score < out.Results[1].Score {
		t.Errorf("results not sorted by score: %f then %f", out.Results[0].Score, out.Results[1].Score)
	}
}

func TestHandleVibe_NotReady(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{})

	r := httptest.NewRequest(http.MethodGet, "/vibe?query=bbq", nil)
	w := httptest.NewRecorder()
	srv.handleVibe(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Error, "no catalog") {
		t.Errorf("error message: got %q", out.Error)
	}
}

func TestHandleVibe_DimensionMismatch(t *testing.T) {
	// Catalog embedded at 32 dimensions, requests embedded at 8.
	srv, _ := newTestServer(t, testServerOptions{vibeReady: true})
	srv.vibe = testVibeServiceWithQueryEmbedder(t)

	r := httptest.NewRequest(http.MethodGet, "/vibe?query=bbq", nil)
	w := httptest.NewRecorder()
	srv.handleVibe(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", w.Code)
	}
	var out models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Error, "dimension") {
		t.Errorf("error message: got %q", out.Error)
	}
}

// testVibeServiceWithQueryEmbedder builds a service whose catalog and
// query embedders disagree on width.
func testVibeServiceWithQueryEmbedder(t *testing.T) *vibe.Service {
	t.Helper()
	catalogEmb := embedding.NewMockEmbedder(32)
	queryEmb := embedding.NewMockEmbedder(8)

	svc := testVibeService(t, catalogEmb)
	idx := svc.Index()
	broken := vibe.NewService(queryEmb, ratelimit.New("embedding", 60, 1000),
		cache.New[[]models.VibeMatch](time.Minute), zap.NewNop())
	broken.SetIndex(idx)
	return broken
}

func samplePlanOutline() *planner.TripOutline {
	return &planner.TripOutline{
		DurationDays: 2,
		Cities:       []string{"Austin", "San Antonio"},
		Searches: []planner.CitySearch{
			{
				City:    "San Antonio",
				Day:     2,
				Queries: []string{"tacos San Antonio TX"},
				Why:     map[string]string{"tacos San Antonio TX": "Puffy taco capital"},
			},
			{
				City:    "Austin",
				Day:     1,
				Queries: []string{"bbq Austin TX"},
				Why:     map[string]string{"bbq Austin TX": "Brisket"},
			},
		},
	}
}

func TestHandlePlan(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{
		googleKey: "g-key",
		openaiKey: "o-key",
		outline:   samplePlanOutline(),
	})

	body, _ := json.Marshal(models.PlanRequest{Query: "2 day Texas food trip"})
	r := httptest.NewRequest(http.MethodPost, "/plan", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handlePlan(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var out models.PlanResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Query != "2 day Texas food trip" {
		t.Errorf("echoed query: got %q", out.Query)
	}
	if len(out.Stops) != 2 {
		t.Fatalf("stops: got %d, want 2", len(out.Stops))
	}
	if out.Stops[0].Day != 1 || out.Stops[0].City != "Austin" {
		t.Errorf("stops not sorted by day: %+v", out.Stops[0])
	}
	if len(out.Stops[0].Places) != 3 {
		t.Errorf("expected 3 places per query, got %d", len(out.Stops[0].Places))
	}
	if out.Stops[0].Places[0].Why != "Brisket" {
		t.Errorf("expected why attached, got %q", out.Stops[0].Places[0].Why)
	}
}

func TestHandlePlan_Validation(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{googleKey: "g-key", openaiKey: "o-key"})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid body", "{not json", http.StatusBadRequest},
		{"empty query", `{"query": ""}`, http.StatusBadRequest},
		{"blank query", `{"query": "   "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/plan", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			srv.handlePlan(w, r)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandlePlan_MissingKeys(t *testing.T) {
	tests := []struct {
		name      string
		googleKey string
		openaiKey string
		wantMsg   string
	}{
		{"no openai key", "g-key", "", "OpenAI API key not configured"},
		{"no google key", "", "o-key", "Google Places API key not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, testServerOptions{
				googleKey: tt.googleKey,
				openaiKey: tt.openaiKey,
				outline:   samplePlanOutline(),
			})
			body, _ := json.Marshal(models.PlanRequest{Query: "trip"})
			r := httptest.NewRequest(http.MethodPost, "/plan", bytes.NewReader(body))
			w := httptest.NewRecorder()
			srv.handlePlan(w, r)
			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("status: got %d, want 503", w.Code)
			}
			var out models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if out.Error != tt.wantMsg {
				t.Errorf("error message: got %q, want %q", out.Error, tt.wantMsg)
			}
		})
	}
}

func TestHandlePlan_OutlineDenied(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{
		googleKey:  "g-key",
		openaiKey:  "o-key",
		outlineErr: &ratelimit.DeniedError{Resource: "openai", Reason: "openai rate limit exceeded: 60/minute"},
	})

	body, _ := json.Marshal(models.PlanRequest{Query: "trip"})
	r := httptest.NewRequest(http.MethodPost, "/plan", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handlePlan(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status: got %d, want 429", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{
		googleKey: "g-key",
		vibeReady: true,
	})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var out models.HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "healthy" {
		t.Errorf("status field: got %q", out.Status)
	}
	if out.OpenAIConfigured {
		t.Error("openai_configured should be false without a key")
	}
	if !out.GoogleConfigured {
		t.Error("google_configured should be true")
	}
	if !out.VibeReady {
		t.Error("vibe_ready should be true")
	}
	for _, key := range []string{"openai", "google", "embedding"} {
		status, ok := out.RateLimits[key]
		if !ok {
			t.Errorf("rate_limits missing %q", key)
			continue
		}
		if status.MinuteLimit == 0 {
			t.Errorf("rate_limits[%q] has zero minute_limit", key)
		}
	}
	for _, key := range []string{"search", "vibe"} {
		if _, ok := out.Caches[key]; !ok {
			t.Errorf("caches missing %q", key)
		}
	}
	if out.Catalog == nil {
		t.Fatal("expected catalog info when vibe is ready")
	}
	if out.Catalog.Places != 3 || out.Catalog.Model != "mock" {
		t.Errorf("catalog info: %+v", out.Catalog)
	}
}

func TestRouter(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{googleKey: "g-key", vibeReady: true})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health: got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nope: got %d", resp.StatusCode)
	}

	// CORS headers for a cross-origin browser request.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin: got %q, want *", got)
	}
}
