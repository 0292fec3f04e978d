package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"memoryvault/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerConfig configures CircuitBreakerProvider.
type CircuitBreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// CircuitBreakerProvider wraps a domain.EmbeddingProvider with circuit
// breaker protection. When the wrapped provider fails repeatedly, the
// circuit opens and subsequent calls fail fast without reaching the
// provider, preventing retry storms against an unhealthy embedding API.
type CircuitBreakerProvider struct {
	inner   domain.EmbeddingProvider
	breaker *gobreaker.CircuitBreaker[[]float32]
	name    string
}

// NewCircuitBreakerProvider wraps inner with a circuit breaker. Zero-valued
// fields in cfg fall back to sensible defaults.
func NewCircuitBreakerProvider(inner domain.EmbeddingProvider, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	name, _ := inner.ModelInfo()
	cb := gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        "embedding:" + name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				"breaker", breakerName, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool { return err == nil },
	})

	return &CircuitBreakerProvider{inner: inner, breaker: cb, name: name}
}

// Embed implements domain.EmbeddingProvider, routed through the breaker.
func (p *CircuitBreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.breaker.Execute(func() ([]float32, error) {
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDomainError("CircuitBreakerProvider.Embed", domain.ErrModelError,
				fmt.Sprintf("provider %q circuit open", p.name))
		}
		return nil, err
	}
	return vec, nil
}

// EmbedBatch implements domain.EmbeddingProvider. A batch call counts as a
// single breaker execution: one failing batch counts as one failure.
func (p *CircuitBreakerProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	_, err := p.breaker.Execute(func() ([]float32, error) {
		var err error
		out, err = p.inner.EmbedBatch(ctx, texts)
		return nil, err
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDomainError("CircuitBreakerProvider.EmbedBatch", domain.ErrModelError,
				fmt.Sprintf("provider %q circuit open", p.name))
		}
		return nil, err
	}
	return out, nil
}

func (p *CircuitBreakerProvider) Dimension() int { return p.inner.Dimension() }
func (p *CircuitBreakerProvider) ModelInfo() (string, string) { return p.inner.ModelInfo() }

// State returns the current circuit breaker state for monitoring.
func (p *CircuitBreakerProvider) State() gobreaker.State { return p.breaker.State() }

var _ domain.EmbeddingProvider = (*CircuitBreakerProvider)(nil)

// RateLimitedProvider wraps a domain.EmbeddingProvider with a token-bucket
// limiter, throttling outbound calls to a remote embedding API.
type RateLimitedProvider struct {
	inner   domain.EmbeddingProvider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a limiter allowing requestsPerSecond
// sustained throughput and a burst of up to burst concurrent requests.
func NewRateLimitedProvider(inner domain.EmbeddingProvider, requestsPerSecond float64, burst int) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Embed waits for a token (respecting ctx cancellation) before calling inner.
func (p *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Embed(ctx, text)
}

// EmbedBatch waits for a single token before calling inner, treating the
// batch as one rate-limited unit of work.
func (p *RateLimitedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.EmbedBatch(ctx, texts)
}

func (p *RateLimitedProvider) Dimension() int { return p.inner.Dimension() }
func (p *RateLimitedProvider) ModelInfo() (string, string) { return p.inner.ModelInfo() }

var _ domain.EmbeddingProvider = (*RateLimitedProvider)(nil)
