package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"memoryvault/internal/domain"
)

func TestGeminiEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "batchEmbedContents") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Errorf("unexpected API key header: %s", r.Header.Get("X-Goog-Api-Key"))
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("API key should not appear in URL query parameters")
		}

		var req geminiBatchEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Requests) != 2 {
			t.Errorf("requests len = %d, want 2", len(req.Requests))
		}

		resp := geminiBatchEmbedResponse{
			Embeddings: []geminiEmbedValues{
				{Values: []float32{0.1, 0.2}},
				{Values: []float32{0.3, 0.4}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewGeminiProvider("test-key", WithGeminiBaseURL(server.URL))
	vecs, err := p.EmbedBatch(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("vecs len = %d, want 2", len(vecs))
	}
	if vecs[0][0] <= 0 {
		t.Errorf("vecs[0][0] = %f, want positive", vecs[0][0])
	}
	if vecs[1][0] <= 0 {
		t.Errorf("vecs[1][0] = %f, want positive", vecs[1][0])
	}
}

func TestGeminiEmbedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", WithGeminiBaseURL(server.URL))
	_, err := p.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrModelError) {
		t.Errorf("expected ErrModelError, got: %v", err)
	}
}

func TestGeminiEmbedEmptyInput(t *testing.T) {
	p := NewGeminiProvider("key")
	_, err := p.Embed(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestGeminiEmbedBatchAllEmpty(t *testing.T) {
	p := NewGeminiProvider("key")
	_, err := p.EmbedBatch(context.Background(), []string{""})
	if !errors.Is(err, domain.ErrModelError) {
		t.Errorf("expected ErrModelError, got: %v", err)
	}
}

func TestGeminiEmbedContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewGeminiProvider("key", WithGeminiBaseURL(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, "hello")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestGeminiOptions(t *testing.T) {
	p := NewGeminiProvider("key",
		WithGeminiModel("custom-model"),
		WithGeminiDimensions(256),
		WithGeminiBaseURL("http://custom.api"),
		WithGeminiClient(&http.Client{}),
	)
	if p.model != "custom-model" {
		t.Errorf("model = %q", p.model)
	}
	if p.dims != 256 {
		t.Errorf("dims = %d", p.dims)
	}
	if p.Dimension() != 256 {
		t.Errorf("Dimension() = %d", p.Dimension())
	}
	name, _ := p.ModelInfo()
	if name != "gemini" {
		t.Errorf("ModelInfo() name = %q", name)
	}
}

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*GeminiProvider)(nil)
