package vectorstore

import (
	"database/sql"
	"strconv"
)

// schemaVersion identifies the current schema shape. Bumped whenever the
// memories/vectors table layout changes.
const schemaVersion = 1

// migrate creates the schema if it doesn't exist.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS memories (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			content                 TEXT NOT NULL,
			content_hash            TEXT NOT NULL,
			priority                TEXT NOT NULL DEFAULT 'NORMAL',
			category                TEXT NOT NULL DEFAULT '',
			tags                    TEXT NOT NULL DEFAULT '[]',
			project_id              TEXT NOT NULL DEFAULT '',
			source                  TEXT NOT NULL DEFAULT '',
			created_at              TEXT NOT NULL,
			updated_at              TEXT NOT NULL,
			embedding_model         TEXT NOT NULL DEFAULT '',
			embedding_model_version TEXT NOT NULL DEFAULT '',
			embedding_dimension     INTEGER NOT NULL DEFAULT 0,
			access_count            INTEGER NOT NULL DEFAULT 0,
			last_accessed_at        TEXT
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_content_hash ON memories(content_hash);
		CREATE INDEX IF NOT EXISTS idx_memories_priority ON memories(priority);
		CREATE INDEX IF NOT EXISTS idx_memories_project_id ON memories(project_id);
		CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);

		CREATE TABLE IF NOT EXISTS vectors (
			memory_id INTEGER PRIMARY KEY REFERENCES memories(id) ON DELETE CASCADE,
			embedding BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS schema_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(
		`INSERT INTO schema_meta(key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(schemaVersion),
	)
	return err
}
