package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"memoryvault/internal/domain"
)

// GeminiOption configures the Gemini embedding provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the embedding model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiDimensions sets the embedding dimensions.
func WithGeminiDimensions(dims int) GeminiOption {
	return func(p *GeminiProvider) { p.dims = dims }
}

// WithGeminiBaseURL sets a custom base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

// WithGeminiClient sets a custom HTTP client.
func WithGeminiClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = client }
}

// GeminiProvider implements domain.EmbeddingProvider using the Google Gemini API.
type GeminiProvider struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:  apiKey,
		model:   "text-embedding-004",
		dims:    768,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// --- Gemini embeddings wire types ---

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedContentRequest `json:"requests"`
}

type geminiEmbedContentRequest struct {
	Model   string       `json:"model"`
	Content geminiECPart `json:"content"`
}

type geminiECPart struct {
	Parts []geminiTextPart `json:"parts"`
}

type geminiTextPart struct {
	Text string `json:"text"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiEmbedValues `json:"embeddings"`
}

type geminiEmbedValues struct {
	Values []float32 `json:"values"`
}

// Embed implements domain.EmbeddingProvider. An empty text fails fast with
// ErrInvalidInput without making a request.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.NewDomainError("GeminiProvider.Embed", domain.ErrInvalidInput, "empty text")
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
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	nonEmpty, indices, allEmpty := splitBatch(texts)
	if allEmpty {
		return nil, domain.NewDomainError("GeminiProvider.EmbedBatch", domain.ErrModelError, "all inputs empty")
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

func (p *GeminiProvider) embedRaw(ctx context.Context, texts []string) ([][]float32, error) {
	requests := make([]geminiEmbedContentRequest, len(texts))
	for i, text := range texts {
		requests[i] = geminiEmbedContentRequest{
			Model: "models/" + p.model,
			Content: geminiECPart{
				Parts: []geminiTextPart{{Text: text}},
			},
		}
	}

	reqBody := geminiBatchEmbedRequest{Requests: requests}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, wrapModelError("GeminiProvider", fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, wrapModelError("GeminiProvider", fmt.Errorf("create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, wrapModelError("GeminiProvider", fmt.Errorf("http request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10*1024*1024))
	if err != nil {
		return nil, wrapModelError("GeminiProvider", fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, wrapModelError("GeminiProvider", fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var gemResp geminiBatchEmbedResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		return nil, wrapModelError("GeminiProvider", fmt.Errorf("unmarshal response: %w", err))
	}

	result := make([][]float32, len(gemResp.Embeddings))
	for i, e := range gemResp.Embeddings {
		result[i] = e.Values
	}

	return result, nil
}

// Dimension implements domain.EmbeddingProvider.
func (p *GeminiProvider) Dimension() int { return p.dims }

// ModelInfo implements domain.EmbeddingProvider.
func (p *GeminiProvider) ModelInfo() (string, string) { return "gemini", p.model }
