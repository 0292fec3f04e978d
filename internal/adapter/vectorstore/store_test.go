package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"memoryvault/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVec(dims int, seed int) []float32 {
	v := make([]float32, dims)
	v[seed%dims] = 1
	return v
}

func TestInsertAndGetMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertMemory(ctx, "hello world", unitVec(4, 0), domain.StoreMeta{
		Priority: domain.PriorityHigh,
		Tags:     []string{"greeting"},
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	m, err := s.GetMemory(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "hello world", m.Content)
	require.Equal(t, domain.PriorityHigh, m.Priority)
	require.Equal(t, []string{"greeting"}, m.Tags)
	require.Equal(t, 4, m.EmbeddingDimension)
	require.Equal(t, ContentHash("hello world"), m.ContentHash)
}

func TestGetMemoryNotFound(t *testing.T) {
	s := newTestStore(t)
	m, err := s.GetMemory(context.Background(), 999)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestInsertMemoryDuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertMemory(ctx, "same content", unitVec(4, 0), domain.StoreMeta{})
	require.NoError(t, err)

	_, err = s.InsertMemory(ctx, "same content", unitVec(4, 1), domain.StoreMeta{})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrDuplicateHash))
}

func TestInsertMemoryInvalidPriority(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertMemory(context.Background(), "x", unitVec(4, 0), domain.StoreMeta{Priority: "URGENT"})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrInvalidPriority))
}

func TestInsertMemoryDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertMemory(context.Background(), "x", unitVec(8, 0), domain.StoreMeta{})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestGetMemoryByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertMemory(ctx, "findme", unitVec(4, 0), domain.StoreMeta{})
	require.NoError(t, err)

	m, err := s.GetMemoryByHash(ctx, ContentHash("findme"))
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, id, m.ID)

	m2, err := s.GetMemoryByHash(ctx, ContentHash("absent"))
	require.NoError(t, err)
	require.Nil(t, m2)
}

func TestDeleteMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertMemory(ctx, "bye", unitVec(4, 0), domain.StoreMeta{})
	require.NoError(t, err)

	ok, err := s.DeleteMemory(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	m, err := s.GetMemory(ctx, id)
	require.NoError(t, err)
	require.Nil(t, m)

	// idempotent: deleting again returns false, not an error.
	ok, err = s.DeleteMemory(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteThenReStoreYieldsNewID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.InsertMemory(ctx, "X", unitVec(4, 0), domain.StoreMeta{})
	require.NoError(t, err)

	_, err = s.DeleteMemory(ctx, id1)
	require.NoError(t, err)

	id2, err := s.InsertMemory(ctx, "X", unitVec(4, 0), domain.StoreMeta{})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestUpdateAccessCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertMemory(ctx, "counted", unitVec(4, 0), domain.StoreMeta{})
	require.NoError(t, err)

	require.NoError(t, s.UpdateAccessCount(ctx, id))
	require.NoError(t, s.UpdateAccessCount(ctx, id))

	m, err := s.GetMemory(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 2, m.AccessCount)
	require.NotNil(t, m.LastAccessedAt)
}

func TestUpdateAccessCountMissingRowIsSilent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpdateAccessCount(context.Background(), 12345))
}

func TestListMemoriesPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := make(map[int64]bool)
	for i := 0; i < 15; i++ {
		id, err := s.InsertMemory(ctx, "paging memory "+string(rune('a'+i)), unitVec(4, i), domain.StoreMeta{
			Tags: []string{"paging"},
		})
		require.NoError(t, err)
		ids[id] = true
		// distinct content per memory to avoid duplicate-hash collisions.
		_ = id
	}

	page1, total1, err := s.ListMemories(ctx, domain.ListOptions{
		Filters: domain.Filters{Tags: []string{"paging"}},
		Limit:   10, Offset: 0,
	})
	require.NoError(t, err)
	require.Equal(t, 15, total1)
	require.Len(t, page1, 10)

	page2, _, err := s.ListMemories(ctx, domain.ListOptions{
		Filters: domain.Filters{Tags: []string{"paging"}},
		Limit:   10, Offset: 10,
	})
	require.NoError(t, err)
	require.Len(t, page2, 5)

	seen := make(map[int64]bool)
	for _, m := range page1 {
		seen[m.ID] = true
	}
	for _, m := range page2 {
		require.False(t, seen[m.ID], "id %d present on both pages", m.ID)
	}
}

func TestListMemoriesFilterByPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertMemory(ctx, "a", unitVec(4, 0), domain.StoreMeta{Priority: domain.PriorityHigh})
	require.NoError(t, err)
	_, err = s.InsertMemory(ctx, "b", unitVec(4, 1), domain.StoreMeta{Priority: domain.PriorityLow})
	require.NoError(t, err)

	rows, total, err := s.ListMemories(ctx, domain.ListOptions{
		Filters: domain.Filters{Priority: domain.PriorityHigh},
		Limit:   10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, rows, 1)
	require.Equal(t, domain.PriorityHigh, rows[0].Priority)
}

func TestVectorSearchThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertMemory(ctx, "a", []float32{1, 0, 0, 0}, domain.StoreMeta{})
	require.NoError(t, err)
	_, err = s.InsertMemory(ctx, "b", []float32{0, 1, 0, 0}, domain.StoreMeta{})
	require.NoError(t, err)

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 10, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, float32(1.0), results[0].Similarity, 1e-6)
}

func TestVectorSearchIncrementalUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Load the index before inserting further memories.
	_, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.True(t, s.vecIdx.isLoaded())

	id, err := s.InsertMemory(ctx, "fresh", []float32{1, 0, 0, 0}, domain.StoreMeta{})
	require.NoError(t, err)

	results, err := s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id, results[0].ID)

	ok, err := s.DeleteMemory(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	results, err = s.VectorSearch(ctx, []float32{1, 0, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Empty(t, results)
}
