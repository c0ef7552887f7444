// Package pipeline builds the embedding catalog offline: fetch place
// data from Google Places, then embed it for vibe search.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
)

// defaultRequestRate paces upstream calls; roughly the polite delay the
// Places quota documentation suggests.
const defaultRequestRate = 5

// SearchConfig is one category's fetch block.
type SearchConfig struct {
	Category           string   `yaml:"category"`
	Queries            []string `yaml:"queries"`
	MaxResultsPerQuery int      `yaml:"max_results_per_query"`
}

// FetchConfig is the fetch run definition.
type FetchConfig struct {
	Searches []SearchConfig `yaml:"searches"`
}

// LoadFetchConfig reads and parses a fetch config file.
func LoadFetchConfig(path string) (*FetchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch config: %w", err)
	}
	var cfg FetchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse fetch config: %w", err)
	}
	if len(cfg.Searches) == 0 {
		return nil, errors.New("fetch config has no searches")
	}
	return &cfg, nil
}

// FetchOutput is the raw dataset written by a fetch run and read by the
// catalog builder. FetchID gives the dataset a lineage ID that the
// builder carries into the catalog.
type FetchOutput struct {
	FetchID     string          `json:"fetch_id"`
	FetchedAt   time.Time       `json:"fetched_at"`
	TotalPlaces int             `json:"total_places"`
	Places      []catalog.Place `json:"places"`
}

// Detailer fetches detailed place records for a text query.
type Detailer interface {
	FetchDetailed(ctx context.Context, query string, maxResults int) ([]catalog.Place, error)
}

// Fetcher runs the configured searches against the Places API.
type Fetcher struct {
	client Detailer
	pacer  *rate.Limiter
	logger *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchLogger sets the logger.
func WithFetchLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// WithRequestRate overrides the upstream request pacing, for tests.
func WithRequestRate(perSecond float64) FetcherOption {
	return func(f *Fetcher) { f.pacer = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// NewFetcher wires a Places client into a paced fetch pipeline.
func NewFetcher(client Detailer, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: client,
		pacer:  rate.NewLimiter(rate.Limit(defaultRequestRate), 1),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes every configured search, tags results with the config's
// category, and dedupes by place_id with the first record seen winning.
// A failed query is logged and skipped; a run that yields no places at
// all is an error.
func (f *Fetcher) Run(ctx context.Context, cfg *FetchConfig) (*FetchOutput, error) {
	seen := make(map[string]bool)
	var all []catalog.Place

	for _, sc := range cfg.Searches {
		maxResults := sc.MaxResultsPerQuery
		if maxResults <= 0 {
			maxResults = 10
		}
		for _, query := range sc.Queries {
			if err := f.pacer.Wait(ctx); err != nil {
				return nil, err
			}

			found, err := f.client.FetchDetailed(ctx, query, maxResults)
			if err != nil {
				f.logger.Warn("fetch query failed",
					zap.String("category", sc.Category),
					zap.String("query", query),
					zap.Error(err))
				continue
			}
			f.logger.Info("fetched places",
				zap.String("category", sc.Category),
				zap.String("query", query),
				zap.Int("count", len(found)))

			for _, p := range found {
				if p.PlaceID == "" || seen[p.PlaceID] {
					continue
				}
				seen[p.PlaceID] = true
				p.Category = sc.Category
				all = append(all, p)
			}
		}
	}

	if len(all) == 0 {
		return nil, errors.New("no places fetched, check queries and API key")
	}

	return &FetchOutput{
		FetchID:     uuid.NewString(),
		FetchedAt:   time.Now().UTC(),
		TotalPlaces: len(all),
		Places:      all,
	}, nil
}

// WriteOutput writes out as indented JSON, creating parent directories.
func WriteOutput(path string, out *FetchOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fetch output: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write fetch output: %w", err)
	}
	return nil
}

// LoadFetchOutput reads a fetch output file back.
func LoadFetchOutput(path string) (*FetchOutput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fetch output: %w", err)
	}
	var out FetchOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse fetch output: %w", err)
	}
	return &out, nil
}
