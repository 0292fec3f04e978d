package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateStore(cfg, ve)
	validateEmbedding(cfg, ve)
	validateCache(cfg, ve)
	validateScoring(cfg, ve)
	validateRetrieval(cfg, ve)
	validateRateLimit(cfg, ve)
	validateCircuitBreaker(cfg, ve)
	validateMCP(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateStore(cfg *Config, ve *ValidationError) {
	if cfg.Store.DataDir == "" && cfg.Store.DBPath == "" {
		ve.Add("store.data_dir or store.db_path must be set")
	}
}

var validEmbeddingProviders = map[string]bool{
	"openai": true,
	"gemini": true,
	"ollama": true,
	"local":  true,
}

func validateEmbedding(cfg *Config, ve *ValidationError) {
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		ve.Add("embedding.provider %q is not one of openai, gemini, ollama, local", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		ve.Add("embedding.dimensions must be > 0")
	}
	if cfg.Embedding.Timeout <= 0 {
		ve.Add("embedding.timeout must be > 0")
	}
	switch cfg.Embedding.Provider {
	case "openai", "gemini":
		if cfg.Embedding.APIKey == "" {
			ve.Add("embedding.api_key is required for provider %q", cfg.Embedding.Provider)
		}
	}
}

func validateCache(cfg *Config, ve *ValidationError) {
	if cfg.Cache.MaxSize <= 0 {
		ve.Add("cache.max_size must be > 0")
	}
}

func validateScoring(cfg *Config, ve *ValidationError) {
	w := cfg.Scoring
	if w.SimilarityWeight < 0 || w.RecencyWeight < 0 || w.PriorityWeight < 0 || w.UsageWeight < 0 {
		ve.Add("scoring weights must be non-negative")
	}
	if w.SimilarityWeight == 0 && w.RecencyWeight == 0 && w.PriorityWeight == 0 && w.UsageWeight == 0 {
		ve.Add("at least one scoring weight must be > 0")
	}
}

func validateRetrieval(cfg *Config, ve *ValidationError) {
	r := cfg.Retrieval
	if r.DuplicateThreshold <= 0 || r.DuplicateThreshold > 1 {
		ve.Add("retrieval.duplicate_threshold must be in (0, 1]")
	}
	if r.SimilarityFloor < 0 || r.SimilarityFloor > 1 {
		ve.Add("retrieval.similarity_floor must be in [0, 1]")
	}
	if r.DefaultLimit <= 0 {
		ve.Add("retrieval.default_limit must be > 0")
	}
	if r.MaxLimit < r.DefaultLimit {
		ve.Add("retrieval.max_limit must be >= retrieval.default_limit")
	}
}

func validateRateLimit(cfg *Config, ve *ValidationError) {
	if !cfg.RateLimit.Enabled {
		return
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		ve.Add("rate_limit.requests_per_second must be > 0 when rate limiting is enabled")
	}
	if cfg.RateLimit.Burst <= 0 {
		ve.Add("rate_limit.burst must be > 0 when rate limiting is enabled")
	}
}

func validateCircuitBreaker(cfg *Config, ve *ValidationError) {
	if !cfg.CircuitBreaker.Enabled {
		return
	}
	if cfg.CircuitBreaker.MaxFailures == 0 {
		ve.Add("circuit_breaker.max_failures must be > 0 when the circuit breaker is enabled")
	}
	if cfg.CircuitBreaker.Timeout <= 0 {
		ve.Add("circuit_breaker.timeout must be > 0 when the circuit breaker is enabled")
	}
}

var validMCPTransports = map[string]bool{"stdio": true, "http": true}

func validateMCP(cfg *Config, ve *ValidationError) {
	if !validMCPTransports[cfg.MCP.Transport] {
		ve.Add("mcp.transport %q is not one of stdio, http", cfg.MCP.Transport)
	}
	if cfg.MCP.Transport == "http" && cfg.MCP.Addr == "" {
		ve.Add("mcp.addr is required when mcp.transport is http")
	}
}
