package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"memoryvault/internal/domain"
)

// OllamaOption configures the Ollama embedding provider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the embedding model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.model = model }
}

// WithOllamaDimensions sets the embedding dimensions.
func WithOllamaDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) { p.dims = dims }
}

// WithOllamaBaseURL sets a custom base URL.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) { p.baseURL = url }
}

// WithOllamaClient sets a custom HTTP client.
func WithOllamaClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = client }
}

// OllamaProvider implements domain.EmbeddingProvider using the Ollama embedding API.
type OllamaProvider struct {
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewOllamaProvider creates an Ollama embedding provider.
// The baseURL defaults to http://localhost:11434.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		model:   "nomic-embed-text",
		dims:    768,
		baseURL: "http://localhost:11434",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// --- Ollama embeddings wire types ---

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements domain.EmbeddingProvider. An empty text fails fast with
// ErrInvalidInput without making a request.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.NewDomainError("OllamaProvider.Embed", domain.ErrInvalidInput, "empty text")
	}
	vecs, err := p.embedRaw(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return l2Normalize(vecs[0]), nil
}

// EmbedBatch implements domain.EmbeddingProvider. Empty strings within the
// batch yield all-zero vectors without being sent to the API; a batch that
// is entirely empty fails with ErrModelError.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	nonEmpty, indices, allEmpty := splitBatch(texts)
	if allEmpty {
		return nil, domain.NewDomainError("OllamaProvider.EmbedBatch", domain.ErrModelError, "all inputs empty")
	}
	if len(nonEmpty) == 0 {
		return nil, nil
	}
	vecs, err := p.embedRaw(ctx, nonEmpty)
	if err != nil {
		return nil, err
	}
	return assembleBatch(len(texts), p.dims, indices, vecs), nil
}

func (p *OllamaProvider) embedRaw(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := ollamaEmbedRequest{
		Model: p.model,
		Input: texts,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, wrapModelError("OllamaProvider", fmt.Errorf("marshal request: %w", err))
	}

	url := p.baseURL + "/api/embed"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, wrapModelError("OllamaProvider", fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, wrapModelError("OllamaProvider", fmt.Errorf("http request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10*1024*1024))
	if err != nil {
		return nil, wrapModelError("OllamaProvider", fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, wrapModelError("OllamaProvider", fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var ollamaResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return nil, wrapModelError("OllamaProvider", fmt.Errorf("unmarshal response: %w", err))
	}

	return ollamaResp.Embeddings, nil
}

// Dimension implements domain.EmbeddingProvider.
func (p *OllamaProvider) Dimension() int { return p.dims }

// ModelInfo implements domain.EmbeddingProvider.
func (p *OllamaProvider) ModelInfo() (string, string) { return "ollama", p.model }

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*OllamaProvider)(nil)
