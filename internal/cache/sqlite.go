package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists entries in a local code_cache table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite cache path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS code_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt TEXT NOT NULL UNIQUE,
			code_blob BLOB,
			language TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, prompt string) (*Entry, error) {
	e := &Entry{Prompt: prompt}
	var tag sql.NullString
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT code_blob, language, timestamp FROM code_cache WHERE prompt = ?`, prompt,
	).Scan(&e.Content, &tag, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	e.Tag = tag.String
	e.UpdatedAt = ts.Time
	return e, nil
}

func (s *SQLite) Put(ctx context.Context, prompt string, content []byte, tag string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO code_cache (prompt, code_blob, language, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT(prompt) DO UPDATE SET
			code_blob = excluded.code_blob,
			language = excluded.language,
			timestamp = excluded.timestamp`,
		prompt, content, tag, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
