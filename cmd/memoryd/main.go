// Command memoryd runs the memory vault as an MCP tool server over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"memoryvault/internal/adapter/embedding"
	"memoryvault/internal/adapter/mcptool"
	"memoryvault/internal/adapter/vectorstore"
	"memoryvault/internal/domain"
	"memoryvault/internal/infra/config"
	"memoryvault/internal/infra/logger"
	"memoryvault/internal/infra/tracer"
	"memoryvault/internal/usecase/memoryservice"
	"memoryvault/internal/usecase/scorer"
)

const (
	serverName    = "memoryvault"
	serverVersion = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file (defaults used if omitted)")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()

	// 3. Tracer
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 4. Store
	dbPath := cfg.Store.DBPath
	if dbPath == "" {
		dbPath = cfg.Store.DataDir + "/memories.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return fmt.Errorf("store: create data directory: %w", err)
	}
	store, err := vectorstore.New(dbPath, cfg.Embedding.Dimensions, log.With("component", "store"))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()

	// 5. Embedding provider, wrapped with rate limiting and circuit breaking
	// for the HTTP-backed providers. The local provider does no I/O and is
	// left unwrapped.
	provider := buildEmbeddingProvider(cfg, log.With("component", "embedding"))
	cache := embedding.NewCache(cfg.Cache.MaxSize)

	// 6. Service
	svc := memoryservice.New(store, provider, cache, memoryservice.Config{
		DuplicateThreshold: cfg.Retrieval.DuplicateThreshold,
		SimilarityFloor:    cfg.Retrieval.SimilarityFloor,
		DedupCheckEnabled:  cfg.Retrieval.DedupCheckEnabled,
		ScoringWeights: scorer.Weights{
			Similarity: cfg.Scoring.SimilarityWeight,
			Recency:    cfg.Scoring.RecencyWeight,
			Priority:   cfg.Scoring.PriorityWeight,
			Usage:      cfg.Scoring.UsageWeight,
		},
	}, log.With("component", "service"))

	// 7. MCP tool server
	mcpServer := mcptool.New(svc, serverName, serverVersion, log.With("component", "mcptool"))

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- mcpServer.ServeStdio() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// buildEmbeddingProvider constructs the configured provider, decorating
// HTTP-backed providers with rate limiting and circuit breaking. The local
// provider is dependency-free and skips both wrappers.
func buildEmbeddingProvider(cfg *config.Config, log *slog.Logger) domain.EmbeddingProvider {
	var provider domain.EmbeddingProvider

	httpClient := &http.Client{Timeout: cfg.Embedding.Timeout}

	switch cfg.Embedding.Provider {
	case "openai":
		provider = embedding.NewOpenAIProvider(cfg.Embedding.APIKey,
			embedding.WithOpenAIModel(cfg.Embedding.Model),
			embedding.WithOpenAIBaseURL(cfg.Embedding.BaseURL),
			embedding.WithOpenAIDimensions(cfg.Embedding.Dimensions),
			embedding.WithOpenAIClient(httpClient))
	case "gemini":
		provider = embedding.NewGeminiProvider(cfg.Embedding.APIKey,
			embedding.WithGeminiModel(cfg.Embedding.Model),
			embedding.WithGeminiBaseURL(cfg.Embedding.BaseURL),
			embedding.WithGeminiDimensions(cfg.Embedding.Dimensions),
			embedding.WithGeminiClient(httpClient))
	case "ollama":
		provider = embedding.NewOllamaProvider(
			embedding.WithOllamaModel(cfg.Embedding.Model),
			embedding.WithOllamaBaseURL(cfg.Embedding.BaseURL),
			embedding.WithOllamaDimensions(cfg.Embedding.Dimensions),
			embedding.WithOllamaClient(httpClient))
	default:
		return embedding.NewLocalProvider(cfg.Embedding.Dimensions)
	}

	if cfg.RateLimit.Enabled {
		provider = embedding.NewRateLimitedProvider(provider, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	if cfg.CircuitBreaker.Enabled {
		provider = embedding.NewCircuitBreakerProvider(provider, embedding.CircuitBreakerConfig{
			MaxFailures: cfg.CircuitBreaker.MaxFailures,
			Timeout:     cfg.CircuitBreaker.Timeout,
			Interval:    cfg.CircuitBreaker.Interval,
		}, log)
	}

	return provider
}
