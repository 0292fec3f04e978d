package embedding

import (
	"context"
	"hash/fnv"

	"memoryvault/internal/domain"
)

// LocalProvider is a dependency-free, deterministic EmbeddingProvider: it
// hashes text into a fixed-dimension vector rather than calling a model.
// It is the default provider when no remote model is configured.
type LocalProvider struct {
	dims int
}

// NewLocalProvider constructs a deterministic provider of the given
// dimension.
func NewLocalProvider(dims int) *LocalProvider {
	if dims <= 0 {
		dims = 384
	}
	return &LocalProvider{dims: dims}
}

// Embed implements domain.EmbeddingProvider.
func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.NewDomainError("LocalProvider.Embed", domain.ErrInvalidInput, "empty text")
	}
	return l2Normalize(hashEmbed(text, p.dims)), nil
}

// EmbedBatch implements domain.EmbeddingProvider.
func (p *LocalProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	_, _, allEmpty := splitBatch(texts)
	if allEmpty {
		return nil, domain.NewDomainError("LocalProvider.EmbedBatch", domain.ErrModelError, "all inputs empty")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == "" {
			out[i] = make([]float32, p.dims)
			continue
		}
		out[i] = l2Normalize(hashEmbed(t, p.dims))
	}
	return out, nil
}

// Dimension implements domain.EmbeddingProvider.
func (p *LocalProvider) Dimension() int { return p.dims }

// ModelInfo implements domain.EmbeddingProvider.
func (p *LocalProvider) ModelInfo() (string, string) { return "local-hash", "v1" }

// hashEmbed fills each of dims buckets with the FNV-32a hash of the bucket
// index (its two low bytes) followed by the whole text, mapped into roughly
// [-1, 1), giving a stable, reproducible-but-content-sensitive vector.
func hashEmbed(text string, dims int) []float32 {
	out := make([]float32, dims)
	for i := 0; i < dims; i++ {
		h := fnv.New32a()
		h.Write([]byte{byte(i), byte(i >> 8)})
		h.Write([]byte(text))
		out[i] = float32(h.Sum32()%2000)/1000 - 1 // spread into roughly [-1, 1)
	}
	return out
}

var _ domain.EmbeddingProvider = (*LocalProvider)(nil)
