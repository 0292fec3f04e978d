package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"memoryvault/internal/domain"
)

// OpenAIOption configures the OpenAI embedding provider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the embedding model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

// WithOpenAIDimensions sets the embedding dimensions.
func WithOpenAIDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) { p.dims = dims }
}

// WithOpenAIBaseURL sets a custom base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = client }
}

// OpenAIProvider implements domain.EmbeddingProvider using the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   "text-embedding-3-small",
		dims:    1536,
		baseURL: "https://api.openai.com/v1",
		client:  defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// --- OpenAI embeddings wire types ---

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data  []openaiEmbedData `json:"data"`
	Usage openaiEmbedUsage  `json:"usage"`
}

type openaiEmbedData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openaiEmbedUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Embed implements domain.EmbeddingProvider. An empty text fails fast with
// ErrInvalidInput without making a request.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.NewDomainError("OpenAIProvider.Embed", domain.ErrInvalidInput, "empty text")
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
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	nonEmpty, indices, allEmpty := splitBatch(texts)
	if allEmpty {
		return nil, domain.NewDomainError("OpenAIProvider.EmbedBatch", domain.ErrModelError, "all inputs empty")
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

func (p *OpenAIProvider) embedRaw(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := openaiEmbedRequest{
		Input: texts,
		Model: p.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, wrapModelError("OpenAIProvider", fmt.Errorf("marshal request: %w", err))
	}

	url := p.baseURL + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, wrapModelError("OpenAIProvider", fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, wrapModelError("OpenAIProvider", fmt.Errorf("http request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10*1024*1024))
	if err != nil {
		return nil, wrapModelError("OpenAIProvider", fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, wrapModelError("OpenAIProvider", fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var oaiResp openaiEmbedResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, wrapModelError("OpenAIProvider", fmt.Errorf("unmarshal response: %w", err))
	}

	sort.Slice(oaiResp.Data, func(i, j int) bool {
		return oaiResp.Data[i].Index < oaiResp.Data[j].Index
	})

	result := make([][]float32, len(oaiResp.Data))
	for i, d := range oaiResp.Data {
		result[i] = d.Embedding
	}

	return result, nil
}

// Dimension implements domain.EmbeddingProvider.
func (p *OpenAIProvider) Dimension() int { return p.dims }

// ModelInfo implements domain.EmbeddingProvider.
func (p *OpenAIProvider) ModelInfo() (string, string) { return "openai", p.model }
