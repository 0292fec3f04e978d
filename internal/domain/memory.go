package domain

import (
	"context"
	"strings"
	"time"
)

// Priority is one of a closed set of memory importance levels.
type Priority string

const (
	PriorityCore   Priority = "CORE"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// NormalizePriority upper-cases and validates p, defaulting empty input to
// PriorityNormal. An unrecognised token is reported via ok=false.
func NormalizePriority(p string) (Priority, bool) {
	if p == "" {
		return PriorityNormal, true
	}
	switch up := Priority(strings.ToUpper(p)); up {
	case PriorityCore, PriorityHigh, PriorityNormal, PriorityLow:
		return up, true
	default:
		return "", false
	}
}

// Memory is the canonical stored entity: text content plus provenance,
// classification, and usage metadata.
type Memory struct {
	ID                    int64      `json:"id"`
	Content               string     `json:"content"`
	ContentHash           string     `json:"content_hash"`
	Priority              Priority   `json:"priority"`
	Category              string     `json:"category,omitempty"`
	Tags                  []string   `json:"tags,omitempty"`
	ProjectID             string     `json:"project_id,omitempty"`
	Source                string     `json:"source,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	EmbeddingModel        string     `json:"embedding_model,omitempty"`
	EmbeddingModelVersion string     `json:"embedding_model_version,omitempty"`
	EmbeddingDimension    int        `json:"embedding_dimension"`
	AccessCount           int64      `json:"access_count"`
	LastAccessedAt        *time.Time `json:"last_accessed_at,omitempty"`
}

// DateRange bounds created_at inclusively. Either end may be zero to leave
// that bound open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filters narrows a listing or post-filter pass over memories. Zero values
// mean "no constraint"; an empty Tags slice likewise means unconstrained.
type Filters struct {
	Priority  Priority
	ProjectID string
	Tags      []string
	DateRange *DateRange
}

// SortOrder is the direction a list_memories request is sorted in.
type SortOrder string

const (
	SortAscending  SortOrder = "ASC"
	SortDescending SortOrder = "DESC"
)

// NearDuplicate describes a pre-existing memory found to be semantically
// close to content just stored, without blocking the new insert.
type NearDuplicate struct {
	MemoryID   int64   `json:"memory_id"`
	Similarity float32 `json:"similarity"`
	Suggestion string  `json:"suggestion"`
}

// StoreMeta carries the caller-supplied attributes of a new memory, as
// opposed to the store-assigned or provenance fields of Memory.
type StoreMeta struct {
	Priority  Priority
	Category  string
	Tags      []string
	ProjectID string
	Source    string

	EmbeddingModel        string
	EmbeddingModelVersion string
}

// ListOptions configures Store.ListMemories.
type ListOptions struct {
	Filters   Filters
	SortBy    string
	SortOrder SortOrder
	Limit     int
	Offset    int
}

// ScoredCandidate is a vector_search hit: a memory id paired with the
// similarity the store's KNN scan reported for it.
type ScoredCandidate struct {
	ID         int64
	Similarity float32
}

// Store is the narrow capability contract for the hybrid vector-relational
// store (§4.A): persistence of memory rows and their vectors, KNN queries,
// and structured listing. Implementations must uphold the row/vector
// atomicity invariant — callers never observe a memory whose vector is
// missing.
type Store interface {
	InsertMemory(ctx context.Context, content string, vec []float32, meta StoreMeta) (int64, error)
	GetMemory(ctx context.Context, id int64) (*Memory, error)
	GetMemoryByHash(ctx context.Context, hash string) (*Memory, error)
	DeleteMemory(ctx context.Context, id int64) (bool, error)
	UpdateAccessCount(ctx context.Context, id int64) error
	ListMemories(ctx context.Context, opts ListOptions) (rows []Memory, total int, err error)
	VectorSearch(ctx context.Context, queryVec []float32, limit int, minSimilarity float32) ([]ScoredCandidate, error)
	Close() error
}

// EmbeddingProvider maps text to unit-norm vectors of a fixed dimension
// (§4.B). Implementations must L2-normalise non-empty output and leave a
// zero vector zero.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelInfo() (name, version string)
}
