package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"memoryvault/internal/domain"
)

func TestOllamaEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content-type: %s", r.Header.Get("Content-Type"))
		}

		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q, want nomic-embed-text", req.Model)
		}
		if len(req.Input) != 1 {
			t.Errorf("input len = %d, want 1", len(req.Input))
		}
		if req.Input[0] != "hello world" {
			t.Errorf("input[0] = %q, want hello world", req.Input[0])
		}

		resp := ollamaEmbedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	vec, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("vec len = %d, want 3", len(vec))
	}
	if vec[0] <= 0 {
		t.Errorf("vec[0] = %f, want positive", vec[0])
	}
}

func TestOllamaEmbedBatchMultiple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 3 {
			t.Errorf("input len = %d, want 3", len(req.Input))
		}

		resp := ollamaEmbedResponse{
			Embeddings: [][]float32{
				{1.0, 2.0},
				{3.0, 4.0},
				{5.0, 6.0},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	vecs, err := p.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("vecs len = %d, want 3", len(vecs))
	}
	for i, v := range vecs {
		if v[0] <= 0 {
			t.Errorf("vecs[%d][0] = %f, want positive", i, v[0])
		}
	}
}

func TestOllamaEmbedEmptyInput(t *testing.T) {
	p := NewOllamaProvider()
	_, err := p.Embed(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestOllamaEmbedBatchEmptySlice(t *testing.T) {
	p := NewOllamaProvider()
	vecs, err := p.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil for empty slice, got %v", vecs)
	}
}

func TestOllamaEmbedBatchAllEmpty(t *testing.T) {
	p := NewOllamaProvider()
	_, err := p.EmbedBatch(context.Background(), []string{"", ""})
	if !errors.Is(err, domain.ErrModelError) {
		t.Errorf("expected ErrModelError, got: %v", err)
	}
}

func TestOllamaEmbedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	_, err := p.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrModelError) {
		t.Errorf("expected ErrModelError, got: %v", err)
	}
}

func TestOllamaEmbedInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{broken json!!!`))
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))
	_, err := p.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrModelError) {
		t.Errorf("expected ErrModelError, got: %v", err)
	}
}

func TestOllamaEmbedContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, "hello")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestOllamaOptions(t *testing.T) {
	customClient := &http.Client{}
	p := NewOllamaProvider(
		WithOllamaModel("mxbai-embed-large"),
		WithOllamaDimensions(1024),
		WithOllamaBaseURL("http://custom.ollama:11434"),
		WithOllamaClient(customClient),
	)

	if p.model != "mxbai-embed-large" {
		t.Errorf("model = %q, want mxbai-embed-large", p.model)
	}
	if p.dims != 1024 {
		t.Errorf("dims = %d, want 1024", p.dims)
	}
	if p.baseURL != "http://custom.ollama:11434" {
		t.Errorf("baseURL = %q, want http://custom.ollama:11434", p.baseURL)
	}
	if p.client != customClient {
		t.Error("client was not set to custom client")
	}
}

func TestOllamaDimension(t *testing.T) {
	p := NewOllamaProvider()
	if p.Dimension() != 768 {
		t.Errorf("default Dimension() = %d, want 768", p.Dimension())
	}

	p = NewOllamaProvider(WithOllamaDimensions(384))
	if p.Dimension() != 384 {
		t.Errorf("custom Dimension() = %d, want 384", p.Dimension())
	}
}

func TestOllamaModelInfo(t *testing.T) {
	p := NewOllamaProvider()
	name, _ := p.ModelInfo()
	if name != "ollama" {
		t.Errorf("ModelInfo() name = %q, want ollama", name)
	}
}

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*OllamaProvider)(nil)
