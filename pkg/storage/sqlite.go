package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps documents in a single-file database. One shared
// connection avoids writer lock contention under concurrent goroutines.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the document database at path. When path is
// a directory (or empty), a default database file name is appended.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "guildmem.db"
	}
	if !strings.HasSuffix(path, ".db") {
		path = filepath.Join(path, "guildmem.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS documents (
			namespace TEXT NOT NULL,
			doc_key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY (namespace, doc_key)
		);`,
		`CREATE INDEX IF NOT EXISTS documents_updated_idx ON documents(updated_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init storage schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Write(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (namespace, doc_key, value, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, doc_key) DO UPDATE SET
			value = excluded.value,
			updated_at_ms = excluded.updated_at_ms
	`, namespace, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM documents WHERE namespace = ? AND doc_key = ?`,
		namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE updated_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sweep documents: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		_, _ = s.db.ExecContext(ctx, `PRAGMA incremental_vacuum;`)
	}
	return int(removed), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
