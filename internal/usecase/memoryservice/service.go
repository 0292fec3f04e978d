// Package memoryservice orchestrates the store, embedding pipeline, cache,
// and scorer behind the five operations exposed to callers: store, search,
// list, delete, and get.
package memoryservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"memoryvault/internal/adapter/embedding"
	"memoryvault/internal/domain"
	"memoryvault/internal/usecase/scorer"
)

// contentHash mirrors the store's own hashing so the service can probe for
// an exact duplicate before doing any embedding work.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Config tunes the service's dedup and search thresholds.
type Config struct {
	DuplicateThreshold float32 // τ_dup, default 0.9
	SimilarityFloor    float32 // τ_sim, default 0.7
	DedupCheckEnabled  bool
	ScoringWeights     scorer.Weights
}

// DefaultConfig mirrors the rewrite's documented defaults.
var DefaultConfig = Config{
	DuplicateThreshold: 0.9,
	SimilarityFloor:    0.7,
	DedupCheckEnabled:  true,
	ScoringWeights:     scorer.DefaultWeights,
}

// Service implements the five memory operations over a domain.Store and a
// domain.EmbeddingProvider, fronted by a shared embedding cache.
type Service struct {
	store    domain.Store
	embedder domain.EmbeddingProvider
	cache    *embedding.Cache
	cfg      Config
	logger   *slog.Logger
}

// New constructs a Service. cache may be nil, in which case embeddings are
// never reused across calls.
func New(store domain.Store, embedder domain.EmbeddingProvider, cache *embedding.Cache, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, embedder: embedder, cache: cache, cfg: cfg, logger: logger}
}

// StoreMeta carries the caller-supplied fields for a new memory.
type StoreMeta struct {
	Priority  domain.Priority
	Category  string
	Tags      []string
	ProjectID string
	Source    string
}

// StoreResult is the outcome of StoreMemory.
type StoreResult struct {
	MemoryID      int64
	Duplicate     bool
	NearDuplicate *domain.NearDuplicate
}

// StoreMemory embeds, deduplicates, and inserts a new memory. Re-storing
// identical content is a no-op that returns the existing id with
// Duplicate=true.
func (s *Service) StoreMemory(ctx context.Context, content string, meta StoreMeta) (StoreResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return StoreResult{}, domain.NewDomainError("Service.StoreMemory", domain.ErrInvalidInput, "empty content")
	}

	hash := contentHash(content)

	existing, err := s.store.GetMemoryByHash(ctx, hash)
	if err != nil {
		return StoreResult{}, err
	}
	if existing != nil {
		return StoreResult{MemoryID: existing.ID, Duplicate: true}, nil
	}

	vec, err := s.embed(ctx, hash, content)
	if err != nil {
		return StoreResult{}, err
	}

	var nearDup *domain.NearDuplicate
	if s.cfg.DedupCheckEnabled {
		candidates, err := s.store.VectorSearch(ctx, vec, 5, s.cfg.DuplicateThreshold)
		if err != nil {
			return StoreResult{}, err
		}
		for _, c := range candidates {
			m, err := s.store.GetMemory(ctx, c.ID)
			if err != nil || m == nil || m.ContentHash == hash {
				continue
			}
			nearDup = &domain.NearDuplicate{
				MemoryID:   c.ID,
				Similarity: c.Similarity,
				Suggestion: "similar memory already stored; consider reviewing before keeping both",
			}
			break
		}
	}

	name, version := s.embedder.ModelInfo()
	id, err := s.store.InsertMemory(ctx, content, vec, domain.StoreMeta{
		Priority:              meta.Priority,
		Category:              meta.Category,
		Tags:                  meta.Tags,
		ProjectID:             meta.ProjectID,
		Source:                meta.Source,
		EmbeddingModel:        name,
		EmbeddingModelVersion: version,
	})
	if err != nil {
		return StoreResult{}, err
	}

	return StoreResult{MemoryID: id, NearDuplicate: nearDup}, nil
}

// SearchResult is the outcome of SearchMemory.
type SearchResult struct {
	Memories []scorer.Ranked
	Total    int
	Limit    int
}

// SearchMemory embeds the query, retrieves oversampled vector candidates,
// ranks them by composite score, applies post-filters, and returns the top
// `limit` results. It does not bump access counts.
func (s *Service) SearchMemory(ctx context.Context, query string, limit int, filters domain.Filters) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, domain.NewDomainError("Service.SearchMemory", domain.ErrInvalidInput, "empty query")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		return SearchResult{}, domain.NewDomainError("Service.SearchMemory", domain.ErrInvalidInput, "limit must be at most 100")
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return SearchResult{}, err
	}

	candidates, err := s.store.VectorSearch(ctx, queryVec, limit*2, s.cfg.SimilarityFloor)
	if err != nil {
		return SearchResult{}, err
	}

	similarities := make(map[int64]float32, len(candidates))
	memories := make([]domain.Memory, 0, len(candidates))
	for _, c := range candidates {
		m, err := s.store.GetMemory(ctx, c.ID)
		if err != nil {
			return SearchResult{}, err
		}
		if m == nil {
			continue
		}
		similarities[c.ID] = c.Similarity
		memories = append(memories, *m)
	}

	memories = applyFilters(memories, filters)

	ranked := scorer.Rank(memories, similarities, time.Now(), s.cfg.ScoringWeights)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return SearchResult{Memories: ranked, Total: len(ranked), Limit: limit}, nil
}

// ListResult is the outcome of ListMemories.
type ListResult struct {
	Memories []domain.Memory
	Total    int
	Limit    int
	Offset   int
	HasMore  bool
}

// ListMemories is a thin, non-scoring wrapper over the store's listing.
func (s *Service) ListMemories(ctx context.Context, opts domain.ListOptions) (ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	probe := opts
	probe.Limit = limit + 1

	rows, total, err := s.store.ListMemories(ctx, probe)
	if err != nil {
		return ListResult{}, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	return ListResult{Memories: rows, Total: total, Limit: limit, Offset: opts.Offset, HasMore: hasMore}, nil
}

// DeleteResult is the outcome of DeleteMemory.
type DeleteResult struct {
	Success  bool
	MemoryID *int64
}

// DeleteMemory deletes by id or by content hash (exactly one must be set).
// The embedding cache is intentionally not purged: it is keyed by content
// hash, and stale entries are harmless.
func (s *Service) DeleteMemory(ctx context.Context, memoryID *int64, contentHash *string) (DeleteResult, error) {
	if (memoryID == nil) == (contentHash == nil) {
		return DeleteResult{}, domain.NewDomainError("Service.DeleteMemory", domain.ErrInvalidInput, "exactly one of memory_id, content_hash required")
	}

	id := int64(0)
	if memoryID != nil {
		id = *memoryID
	} else {
		m, err := s.store.GetMemoryByHash(ctx, *contentHash)
		if err != nil {
			return DeleteResult{}, err
		}
		if m == nil {
			return DeleteResult{Success: false}, nil
		}
		id = m.ID
	}

	ok, err := s.store.DeleteMemory(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if !ok {
		return DeleteResult{Success: false}, nil
	}
	return DeleteResult{Success: true, MemoryID: &id}, nil
}

// GetMemory returns the memory by id, bumping its access count as a side
// effect. Returns (nil, nil) if absent.
func (s *Service) GetMemory(ctx context.Context, id int64) (*domain.Memory, error) {
	m, err := s.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if err := s.store.UpdateAccessCount(ctx, id); err != nil {
		s.logger.Warn("memoryservice: failed to update access count", "id", id, "error", err)
	} else {
		m.AccessCount++
	}
	return m, nil
}

// embed resolves the embedding for content via the cache, falling back to
// the underlying model on a miss.
func (s *Service) embed(ctx context.Context, hash, content string) ([]float32, error) {
	if s.cache != nil {
		if vec, ok := s.cache.Get(hash); ok {
			return vec, nil
		}
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(hash, vec)
	}
	return vec, nil
}

func applyFilters(memories []domain.Memory, f domain.Filters) []domain.Memory {
	if f.Priority == "" && f.ProjectID == "" && len(f.Tags) == 0 && f.DateRange == nil {
		return memories
	}

	out := make([]domain.Memory, 0, len(memories))
	for _, m := range memories {
		if f.Priority != "" && m.Priority != f.Priority {
			continue
		}
		if f.ProjectID != "" && m.ProjectID != f.ProjectID {
			continue
		}
		if len(f.Tags) > 0 && !hasAnyTag(m.Tags, f.Tags) {
			continue
		}
		if f.DateRange != nil {
			if !f.DateRange.Start.IsZero() && m.CreatedAt.Before(f.DateRange.Start) {
				continue
			}
			if !f.DateRange.End.IsZero() && m.CreatedAt.After(f.DateRange.End) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if set[t] {
			return true
		}
	}
	return false
}
