package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQLiteAnswerCache stores answers in a local SQLite key/value table so that
// a CLI session survives a restart.
type SQLiteAnswerCache struct {
	db *sql.DB
}

// OpenSQLiteAnswerCache opens (and creates if needed) the cache database at path.
func OpenSQLiteAnswerCache(path string) (*SQLiteAnswerCache, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite cache path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}

	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
	}

	return &SQLiteAnswerCache{db: db}, nil
}

// Close closes the underlying database.
func (c *SQLiteAnswerCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteAnswerCache) Load(ctx context.Context, quizID string) (Answers, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, CacheKey(quizID)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Answers{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load answers for quiz %s: %w", quizID, err)
	}
	return decodeAnswers([]byte(value))
}

func (c *SQLiteAnswerCache) Save(ctx context.Context, quizID string, answers Answers) error {
	data, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		CacheKey(quizID), string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save answers for quiz %s: %w", quizID, err)
	}
	return nil
}

func (c *SQLiteAnswerCache) Clear(ctx context.Context, quizID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, CacheKey(quizID)); err != nil {
		return fmt.Errorf("clear answers for quiz %s: %w", quizID, err)
	}
	return nil
}

// Has reports whether a slot exists for the quiz.
func (c *SQLiteAnswerCache) Has(ctx context.Context, quizID string) (bool, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE key = ?`, CacheKey(quizID)).Scan(&n); err != nil {
		return false, fmt.Errorf("check answers for quiz %s: %w", quizID, err)
	}
	return n > 0, nil
}
