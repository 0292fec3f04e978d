// Package vectorstore implements the hybrid vector-relational store: a
// SQLite-backed row table of memories paired with an in-process cosine
// similarity index over their embeddings.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"memoryvault/internal/domain"
)

// Store implements domain.Store backed by SQLite. An in-memory vecIndex
// caches embeddings to avoid SQLite I/O on every vector search; it is
// lazily loaded on the first search and incrementally updated on
// insert/delete.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	vecIdx *vecIndex
	dim    int
}

// New opens (or creates) a SQLite database at dbPath, runs migrations, and
// returns a ready Store. dim is the configured embedding dimension D; every
// vector passed to InsertMemory must have exactly this length.
func New(dbPath string, dim int, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrStorageUnavailable, err)
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: pragma: %v", domain.ErrStorageUnavailable, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrStorageUnavailable, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		db:     db,
		logger: logger,
		vecIdx: newVecIndex(),
		dim:    dim,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ContentHash returns the hex-encoded SHA-256 of content, the identifier
// used for exact-duplicate detection and LRU cache keys.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// InsertMemory atomically writes a memory row and its vector. It returns
// domain.ErrInvalidPriority, domain.ErrDimensionMismatch, or
// domain.ErrDuplicateHash on a rejected insert.
func (s *Store) InsertMemory(ctx context.Context, content string, vec []float32, meta domain.StoreMeta) (int64, error) {
	priority, ok := domain.NormalizePriority(string(meta.Priority))
	if !ok {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrInvalidPriority, string(meta.Priority))
	}

	if len(vec) != s.dim {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrDimensionMismatch,
			fmt.Sprintf("want %d, got %d", s.dim, len(vec)))
	}

	hash := ContentHash(content)

	tagsJSON, err := json.Marshal(meta.Tags)
	if err != nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrInternal, "marshal tags: "+err.Error())
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrStorageUnavailable, "begin tx: "+err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM memories WHERE content_hash = ?", hash).Scan(&existing)
	if err == nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrDuplicateHash, hash)
	}
	if err != sql.ErrNoRows {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrStorageUnavailable, err.Error())
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memories (
			content, content_hash, priority, category, tags, project_id, source,
			created_at, updated_at, embedding_model, embedding_model_version,
			embedding_dimension, access_count, last_accessed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		content, hash, string(priority), meta.Category, string(tagsJSON), meta.ProjectID, meta.Source,
		now, now, meta.EmbeddingModel, meta.EmbeddingModelVersion, len(vec),
	)
	if err != nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrStorageUnavailable, "insert memory: "+err.Error())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrStorageUnavailable, "last insert id: "+err.Error())
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO vectors (memory_id, embedding) VALUES (?, ?)", id, float32ToBytes(vec)); err != nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrStorageUnavailable, "insert vector: "+err.Error())
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.NewDomainError("Store.InsertMemory", domain.ErrStorageUnavailable, "commit: "+err.Error())
	}

	if s.vecIdx.isLoaded() {
		s.vecIdx.put(id, vec)
	}

	return id, nil
}

// GetMemory looks up a memory by id. Returns (nil, nil) if absent.
func (s *Store) GetMemory(ctx context.Context, id int64) (*domain.Memory, error) {
	row := s.db.QueryRowContext(ctx, memorySelectColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewDomainError("Store.GetMemory", domain.ErrStorageUnavailable, err.Error())
	}
	return m, nil
}

// GetMemoryByHash looks up a memory by its content hash. Returns (nil, nil)
// if absent.
func (s *Store) GetMemoryByHash(ctx context.Context, hash string) (*domain.Memory, error) {
	row := s.db.QueryRowContext(ctx, memorySelectColumns+" FROM memories WHERE content_hash = ?", hash)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewDomainError("Store.GetMemoryByHash", domain.ErrStorageUnavailable, err.Error())
	}
	return m, nil
}

// DeleteMemory atomically removes a memory row and its vector. Returns
// false (not an error) if no such id exists.
func (s *Store) DeleteMemory(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.NewDomainError("Store.DeleteMemory", domain.ErrStorageUnavailable, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return false, domain.NewDomainError("Store.DeleteMemory", domain.ErrStorageUnavailable, err.Error())
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE memory_id = ?", id); err != nil {
		return false, domain.NewDomainError("Store.DeleteMemory", domain.ErrStorageUnavailable, err.Error())
	}

	if err := tx.Commit(); err != nil {
		return false, domain.NewDomainError("Store.DeleteMemory", domain.ErrStorageUnavailable, err.Error())
	}

	s.vecIdx.remove(id)
	return true, nil
}

// UpdateAccessCount increments access_count and sets last_accessed_at=now.
// Best-effort: silent on a missing row.
func (s *Store) UpdateAccessCount(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?",
		now, id,
	)
	if err != nil {
		return domain.NewDomainError("Store.UpdateAccessCount", domain.ErrStorageUnavailable, err.Error())
	}
	return nil
}

// validSortColumns whitelists the columns list_memories may sort by.
var validSortColumns = map[string]bool{
	"id": true, "created_at": true, "updated_at": true,
	"priority": true, "access_count": true, "last_accessed_at": true,
}

// ListMemories returns a structured listing of memories matching opts,
// plus the total number of rows matching the filters (ignoring limit/offset).
func (s *Store) ListMemories(ctx context.Context, opts domain.ListOptions) ([]domain.Memory, int, error) {
	where, args := buildFilterClause(opts.Filters)

	sortBy := opts.SortBy
	if !validSortColumns[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if opts.SortOrder == domain.SortAscending {
		order = "ASC"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM memories" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewDomainError("Store.ListMemories", domain.ErrStorageUnavailable, err.Error())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("%s FROM memories%s ORDER BY %s %s LIMIT ? OFFSET ?", memorySelectColumns, where, sortBy, order)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, domain.NewDomainError("Store.ListMemories", domain.ErrStorageUnavailable, err.Error())
	}
	defer rows.Close()

	var result []domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			s.logger.Warn("vectorstore: skipping corrupt row", "error", err)
			continue
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewDomainError("Store.ListMemories", domain.ErrStorageUnavailable, err.Error())
	}

	return result, total, nil
}

// buildFilterClause renders opts.Filters as a "WHERE ..." clause (or "" for
// no filters) and its bind arguments. Tag matching is OR across tokens via
// substring match on the serialised JSON array, per the tag-filtering
// convention documented alongside the listing contract.
func buildFilterClause(f domain.Filters) (string, []any) {
	var clauses []string
	var args []any

	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if len(f.Tags) > 0 {
		var tagClauses []string
		for _, tag := range f.Tags {
			tagClauses = append(tagClauses, "tags LIKE ?")
			args = append(args, "%\""+tag+"\"%")
		}
		clauses = append(clauses, "("+strings.Join(tagClauses, " OR ")+")")
	}
	if f.DateRange != nil {
		if !f.DateRange.Start.IsZero() {
			clauses = append(clauses, "created_at >= ?")
			args = append(args, f.DateRange.Start.UTC().Format(time.RFC3339Nano))
		}
		if !f.DateRange.End.IsZero() {
			clauses = append(clauses, "created_at <= ?")
			args = append(args, f.DateRange.End.UTC().Format(time.RFC3339Nano))
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// VectorSearch scans the in-memory vector index (hydrating it from the
// database on first use) and returns at most limit candidates with
// similarity >= minSimilarity, sorted by descending similarity.
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, limit int, minSimilarity float32) ([]domain.ScoredCandidate, error) {
	if err := s.vecIdx.loadFromDB(ctx, s); err != nil {
		return nil, domain.NewDomainError("Store.VectorSearch", domain.ErrStorageUnavailable, err.Error())
	}
	return s.vecIdx.search(queryVec, limit, minSimilarity), nil
}

const memorySelectColumns = `SELECT
	id, content, content_hash, priority, category, tags, project_id, source,
	created_at, updated_at, embedding_model, embedding_model_version,
	embedding_dimension, access_count, last_accessed_at`

// scanMemory reads a single memory row. JSON/time parse errors on
// secondary fields are logged and zero-valued rather than failing the scan,
// matching the service-level policy of skipping corrupt rows instead of
// failing whole queries.
func scanMemory(row interface{ Scan(dest ...any) error }) (*domain.Memory, error) {
	var (
		m                domain.Memory
		priority         string
		tagsJSON         string
		createdAt        string
		updatedAt        string
		lastAccessedAt   sql.NullString
	)
	if err := row.Scan(
		&m.ID, &m.Content, &m.ContentHash, &priority, &m.Category, &tagsJSON, &m.ProjectID, &m.Source,
		&createdAt, &updatedAt, &m.EmbeddingModel, &m.EmbeddingModelVersion,
		&m.EmbeddingDimension, &m.AccessCount, &lastAccessedAt,
	); err != nil {
		return nil, err
	}

	m.Priority = domain.Priority(priority)

	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		slog.Warn("vectorstore: corrupt tags JSON", "id", m.ID, "error", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		m.CreatedAt = t
	} else {
		slog.Warn("vectorstore: corrupt created_at", "id", m.ID, "error", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		m.UpdatedAt = t
	} else {
		slog.Warn("vectorstore: corrupt updated_at", "id", m.ID, "error", err)
	}
	if lastAccessedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastAccessedAt.String); err == nil {
			m.LastAccessedAt = &t
		}
	}

	return &m, nil
}
