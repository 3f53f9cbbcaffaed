// Package folderdb provides SQLite-backed folder storage with cascading deletes.
package folderdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// seq preserves insertion order; id is the opaque identifier handed to clients.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS folders (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	parent_id  TEXT REFERENCES folders(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
`

// Root sentinel seeded on every open.
const (
	RootID   = "root"
	RootName = "Root"
)

// DB wraps a sql.DB with folder-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database, applies the schema and seeds
// the root folder.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("folderdb: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("folderdb: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("folderdb: apply schema: %w", err)
	}
	if _, err := conn.Exec(`INSERT OR IGNORE INTO folders (id, name, parent_id) VALUES (?, ?, NULL)`, RootID, RootName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("folderdb: seed root: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
