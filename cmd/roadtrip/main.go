// Package main is the roadtrip CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/henryzhan013/roadtrip-planner/internal/cache"
	"github.com/henryzhan013/roadtrip-planner/internal/catalog"
	"github.com/henryzhan013/roadtrip-planner/internal/cli"
	"github.com/henryzhan013/roadtrip-planner/internal/config"
	"github.com/henryzhan013/roadtrip-planner/internal/embedding"
	"github.com/henryzhan013/roadtrip-planner/internal/models"
	"github.com/henryzhan013/roadtrip-planner/internal/pipeline"
	"github.com/henryzhan013/roadtrip-planner/internal/places"
	"github.com/henryzhan013/roadtrip-planner/internal/planner"
	"github.com/henryzhan013/roadtrip-planner/internal/ratelimit"
	"github.com/henryzhan013/roadtrip-planner/internal/retrieval"
	"github.com/henryzhan013/roadtrip-planner/internal/server"
	"github.com/henryzhan013/roadtrip-planner/internal/trip"
	"github.com/henryzhan013/roadtrip-planner/internal/vibe"
	"github.com/henryzhan013/roadtrip-planner/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/roadtrip/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. When neither exists, environment variables and built-in defaults
// drive everything, which matches keyless demo setups. Returns the config and
// the path that was actually loaded ("" when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); statErr != nil {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "vibe":
		runVibe()
	case "fetch":
		runFetch()
	case "embed":
		runEmbed()
	case "version", "--version", "-v":
		fmt.Printf("roadtrip version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (cache sweeps, catalog reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	sweep := time.Duration(cfg.Cache.SweepSeconds) * time.Second
	go components.SearchCache.Sweep(bgCtx, sweep)
	go components.VibeCache.Sweep(bgCtx, sweep)

	if cfg.Catalog.WatchOrDefault() {
		watch := catalog.NewWatcher(
			cfg.Catalog.Path,
			func(cat *catalog.Catalog) {
				components.Vibe.SetIndex(vibe.NewIndex(cat))
			},
			catalog.WithLogger(logger),
			catalog.WithDebounce(time.Duration(cfg.Catalog.DebounceMS)*time.Millisecond),
		)
		if err := watch.Start(bgCtx); err != nil {
			logger.Warn("catalog watcher not started", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Search,
		components.Vibe,
		components.Trip,
		components.Planner,
		components.Places,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	bgCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printVibeUsage prints vibe subcommand usage and examples.
func printVibeUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: roadtrip vibe [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  roadtrip vibe "chill dive bar with live country music"
  roadtrip vibe authentic texas honky tonk
  roadtrip vibe --limit 3 "bbq worth a detour"
  roadtrip vibe --json "rowdy bar with bull riding"
  roadtrip vibe --server http://localhost:8080 "two-stepping and cold beer"
`)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "roadtrip vibe \"query\" -limit 3"
// would otherwise leave -limit unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runVibe() {
	vibeArgs := argsReorder(os.Args[2:])

	fs := flag.NewFlagSet("vibe", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	catalogPath := fs.String("catalog", "", "catalog file path (default: from config)")
	serverURL := fs.String("server", "", "server URL (empty = search the catalog file directly)")
	limit := fs.Int("limit", 5, "number of matches")
	jsonOut := fs.Bool("json", false, "output JSON instead of text")
	fs.Usage = func() { printVibeUsage(fs) }
	_ = fs.Parse(vibeArgs)

	if fs.NArg() < 1 {
		printVibeUsage(fs)
		os.Exit(1)
	}
	query := buildQuery(fs.Args())
	if query == "" {
		printVibeUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}

	if *serverURL != "" {
		response, err := vibeViaHTTP(*serverURL, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Vibe search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteVibeResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct catalog search; the catalog file is read-only so this is
	// safe alongside a running server.
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if !components.Vibe.Ready() {
		fmt.Fprintf(os.Stderr, "No catalog at %s; run 'roadtrip fetch' and 'roadtrip embed' first\n", cfg.Catalog.Path)
		os.Exit(1)
	}

	results, err := components.Vibe.Search(context.Background(), query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Vibe search failed: %v\n", err)
		os.Exit(1)
	}
	response := &models.VibeResponse{Query: query, Results: results}
	if err := cli.WriteVibeResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func vibeViaHTTP(serverURL, query string, limit int) (*models.VibeResponse, error) {
	u := fmt.Sprintf("%s/vibe?query=%s&limit=%d",
		strings.TrimSuffix(serverURL, "/"), url.QueryEscape(query), limit)
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.VibeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	searchesPath := fs.String("searches", "./data/searches.yaml", "fetch searches file")
	outPath := fs.String("out", "./data/places_raw.json", "output file")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fetchCfg, err := pipeline.LoadFetchConfig(*searchesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load searches: %v\n", err)
		os.Exit(1)
	}

	placesOpts := []places.Option{places.WithLogger(logger)}
	if cfg.Places.BaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	client := places.NewClient(cfg.Keys.Google, placesOpts...)
	if !client.Configured() {
		fmt.Fprintln(os.Stderr, "GOOGLE_PLACES_API_KEY not set")
		os.Exit(1)
	}

	fetcher := pipeline.NewFetcher(client, pipeline.WithFetchLogger(logger))
	out, err := fetcher.Run(context.Background(), fetchCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}
	if err := pipeline.WriteOutput(*outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d places to %s\n", out.TotalPlaces, *outPath)
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	inPath := fs.String("in", "./data/places_raw.json", "fetch output file")
	outPath := fs.String("out", "", "catalog file (default: from config)")
	modelName := fs.String("model", "", "model name recorded in the catalog")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	out := *outPath
	if out == "" {
		out = cfg.Catalog.Path
	}

	in, err := pipeline.LoadFetchOutput(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load fetch output: %v\n", err)
		os.Exit(1)
	}

	embedder, err := embedding.New(embedderOptions(cfg), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize embedder: %v\n", err)
		os.Exit(1)
	}
	defer embedder.Close()

	name := *modelName
	if name == "" {
		name = cfg.Embedding.Model
	}
	if name == "" {
		name = "all-MiniLM-L6-v2"
	}

	builder := pipeline.NewBuilder(embedder, pipeline.WithBuildLogger(logger))
	cat, err := builder.Build(context.Background(), in, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embed failed: %v\n", err)
		os.Exit(1)
	}
	if err := catalog.Write(out, cat); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Embedded %d places (%d dimensions) to %s\n", cat.TotalPlaces, cat.EmbeddingDimension, out)
}

// embedderOptions maps config onto the embedding factory options.
func embedderOptions(cfg *config.Config) embedding.Options {
	return embedding.Options{
		Provider:   cfg.Embedding.Provider,
		ModelPath:  cfg.Embedding.ModelPath,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Keys.OpenAI,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	}
}

// Components holds initialized services.
type Components struct {
	Embedder    embedding.Embedder
	Planner     *planner.Client
	Places      *places.Client
	Search      *retrieval.PlacesService
	Vibe        *vibe.Service
	Trip        *trip.Service
	SearchCache *cache.Cache[[]models.PlaceSummary]
	VibeCache   *cache.Cache[[]models.VibeMatch]
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, err := embedding.New(embedderOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	searchCache := cache.New[[]models.PlaceSummary](ttl)
	vibeCache := cache.New[[]models.VibeMatch](ttl)

	openaiLimiter := ratelimit.New("OpenAI", cfg.Limits.OpenAI.PerMinute, cfg.Limits.OpenAI.PerDay)
	googleLimiter := ratelimit.New("Google", cfg.Limits.Google.PerMinute, cfg.Limits.Google.PerDay)
	embedLimiter := ratelimit.New("Embedding", cfg.Limits.Embedding.PerMinute, cfg.Limits.Embedding.PerDay)

	placesOpts := []places.Option{places.WithLogger(logger)}
	if cfg.Places.BaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	placesClient := places.NewClient(cfg.Keys.Google, placesOpts...)

	plannerOpts := []planner.Option{
		planner.WithModel(cfg.Planner.Model),
		planner.WithTemperature(cfg.Planner.Temperature),
		planner.WithLogger(logger),
	}
	if cfg.Planner.BaseURL != "" {
		plannerOpts = append(plannerOpts, planner.WithBaseURL(cfg.Planner.BaseURL))
	}
	plannerClient := planner.NewClient(cfg.Keys.OpenAI, openaiLimiter, plannerOpts...)

	searchSvc := retrieval.NewPlacesService(placesClient, googleLimiter, searchCache, retrieval.WithLogger(logger))
	vibeSvc := vibe.NewService(embedder, embedLimiter, vibeCache, logger)
	tripSvc := trip.NewService(plannerClient, searchSvc, trip.WithLogger(logger))

	if cat, err := catalog.Load(cfg.Catalog.Path); err != nil {
		logger.Warn("catalog not loaded, vibe search starts cold",
			zap.String("path", cfg.Catalog.Path), zap.Error(err))
	} else {
		vibeSvc.SetIndex(vibe.NewIndex(cat))
		logger.Info("catalog loaded",
			zap.String("path", cfg.Catalog.Path),
			zap.Int("places", len(cat.Places)),
			zap.Int("dimension", cat.EmbeddingDimension),
			zap.String("model", cat.Model))
	}

	return &Components{
		Embedder:    embedder,
		Planner:     plannerClient,
		Places:      placesClient,
		Search:      searchSvc,
		Vibe:        vibeSvc,
		Trip:        tripSvc,
		SearchCache: searchCache,
		VibeCache:   vibeCache,
	}, nil
}

func printUsage() {
	fmt.Println(`roadtrip - Trip planning API with vibe search

Usage:
  roadtrip server [flags]         Start the HTTP server
  roadtrip vibe [flags] <query>   Search places by vibe
  roadtrip fetch [flags]          Fetch place data from Google Places
  roadtrip embed [flags]          Embed fetched places into a catalog
  roadtrip version                Show version
  roadtrip help                   Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/roadtrip/config.yaml)
  --debug            Enable debug logging (cache sweeps, catalog reloads, etc.)

Vibe Flags:
  --config string    Config file path
  --catalog string   Catalog file path (default: from config)
  --server string    Server URL. Empty (default) searches the catalog file directly.
  --limit int        Number of matches (default: 5)
  --json             Output JSON instead of text

Fetch Flags:
  --config string    Config file path
  --searches string  Fetch searches file (default: ./data/searches.yaml)
  --out string       Output file (default: ./data/places_raw.json)

Embed Flags:
  --config string    Config file path
  --in string        Fetch output file (default: ./data/places_raw.json)
  --out string       Catalog file (default: from config)
  --model string     Model name recorded in the catalog

Examples:
  roadtrip server
  roadtrip vibe "authentic texas honky tonk"
  roadtrip vibe --json --limit 3 "bbq worth a detour"
  roadtrip fetch --searches data/searches.yaml --out data/places_raw.json
  roadtrip embed --in data/places_raw.json
  roadtrip version`)
}
