package vectorstore

import (
	"context"
	"sort"
	"sync"

	"memoryvault/internal/domain"
)

// vecIndex is an in-memory mirror of the vectors table that avoids SQLite
// I/O on every vector search. It is lazily loaded on the first search and
// updated incrementally on insert/delete — the concrete stand-in for "the
// vector-search extension" a cgo-free SQLite driver cannot load.
type vecIndex struct {
	mu      sync.RWMutex
	entries map[int64][]float32 // memory id -> embedding
	loaded  bool
}

func newVecIndex() *vecIndex {
	return &vecIndex{
		entries: make(map[int64][]float32),
	}
}

// search performs in-memory cosine similarity search against all cached
// embeddings, returning at most limit candidates with similarity >= minSimilarity,
// sorted by descending similarity. Returns nil if the index has not been loaded.
func (idx *vecIndex) search(queryVec []float32, limit int, minSimilarity float32) []domain.ScoredCandidate {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.loaded {
		return nil
	}

	candidates := make([]domain.ScoredCandidate, 0, len(idx.entries))
	for id, vec := range idx.entries {
		sim := cosineSimilarity(queryVec, vec)
		if sim < minSimilarity {
			continue
		}
		candidates = append(candidates, domain.ScoredCandidate{ID: id, Similarity: sim})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if limit >= 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// put adds or updates an entry in the index.
func (idx *vecIndex) put(id int64, embedding []float32) {
	if embedding == nil {
		return
	}
	idx.mu.Lock()
	idx.entries[id] = embedding
	idx.mu.Unlock()
}

// remove deletes an entry from the index.
func (idx *vecIndex) remove(id int64) {
	idx.mu.Lock()
	delete(idx.entries, id)
	idx.mu.Unlock()
}

// isLoaded returns whether the index has been populated from the database.
func (idx *vecIndex) isLoaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// size returns the number of entries in the index.
func (idx *vecIndex) size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// loadFromDB populates the index from the database. Called once on the
// first vector search; subsequent calls are no-ops.
func (idx *vecIndex) loadFromDB(ctx context.Context, s *Store) error {
	idx.mu.Lock()
	if idx.loaded {
		idx.mu.Unlock()
		return nil
	}
	idx.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT memory_id, embedding FROM vectors")
	if err != nil {
		return err
	}
	defer rows.Close()

	entries := make(map[int64][]float32)
	for rows.Next() {
		var (
			id      int64
			embBlob []byte
		)
		if err := rows.Scan(&id, &embBlob); err != nil {
			continue
		}
		emb := bytesToFloat32(embBlob)
		if emb == nil {
			continue
		}
		entries[id] = emb
	}
	if err := rows.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.loaded = true
	idx.mu.Unlock()

	return nil
}
