package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harun/loom/pkg/interceptor"
	"github.com/harun/loom/pkg/llm"
)

// SQLite persists cache entries on disk. Several processes may point at the
// same file; sqlite serializes access.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the cache database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("cache database path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			response BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_responses_expires ON responses(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (*interceptor.Entry, error) {
	var raw []byte
	var expires int64
	err := s.db.QueryRowContext(ctx,
		"SELECT response, expires_at FROM responses WHERE key = ?", key,
	).Scan(&raw, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var resp llm.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	entry := &interceptor.Entry{Response: &resp}
	if expires > 0 {
		entry.ExpiresAt = time.Unix(0, expires)
	}
	return entry, nil
}

func (s *SQLite) Set(ctx context.Context, key string, entry *interceptor.Entry) error {
	raw, err := json.Marshal(entry.Response)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	var expires int64
	if !entry.ExpiresAt.IsZero() {
		expires = entry.ExpiresAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO responses (key, response, expires_at) VALUES (?, ?, ?)",
		key, raw, expires,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Purge removes every entry whose expiry has passed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM responses WHERE expires_at > 0 AND expires_at < ?", time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
