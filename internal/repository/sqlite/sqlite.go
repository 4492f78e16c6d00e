// Package sqlite implements the user repository on an embedded SQLite
// database.
//
// This is the "real database" alternative to the flat-file store. The
// important difference is not SQL — it is atomicity: upserts here are a
// single INSERT ... ON CONFLICT DO UPDATE statement, so two concurrent
// logins for the same account can never race their way into two rows. The
// flat-file backend has to simulate that with a process-wide mutex; here the
// database does it natively.
//
// WHY modernc.org/sqlite?
// It is a pure-Go translation of SQLite — no CGo, no C compiler, and
// cross-compilation just works. The driver registers itself with
// database/sql under the name "sqlite" via the blank import below.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection, not a pool: SQLite allows a single writer anyway, and
	// with ":memory:" every extra pooled connection would be a separate,
	// empty database. Serialized by the pool, concurrent writers queue
	// instead of failing with SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	// sql.Open only creates the pool; Ping forces a real connection so a bad
	// path or permissions problem surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — the default
	// rollback journal locks the whole file per write.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent.
//
// The composite primary key (id, provider) IS the uniqueness invariant: the
// database itself refuses a second row for the same key, whatever the
// application layer does. Emails are stored as a JSON document in a single
// column — they are an opaque ordered list we only ever read and write
// whole, except for the first value, which local login matches on via the
// generated primary_email column.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT NOT NULL,
			provider      TEXT NOT NULL,
			username      TEXT NOT NULL DEFAULT '',
			display_name  TEXT NOT NULL DEFAULT '',
			emails        TEXT NOT NULL DEFAULT '[]',
			avatar_url    TEXT NOT NULL DEFAULT '',
			password      TEXT NOT NULL DEFAULT '',
			phone         TEXT NOT NULL DEFAULT '',
			gender        TEXT NOT NULL DEFAULT '',
			location      TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			primary_email TEXT GENERATED ALWAYS AS (json_extract(emails, '$[0].value')) STORED,
			PRIMARY KEY (id, provider)
		);
		CREATE INDEX IF NOT EXISTS idx_users_primary_email ON users(provider, primary_email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}
