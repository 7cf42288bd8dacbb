// Package persistence provides SQLite-backed append-only records of
// conversation turns and generation sessions. Records exist for audit and
// offline analysis only; the running pipeline never reads them back.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"metagent/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id            TEXT PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	stage_before  TEXT NOT NULL,
	stage_after   TEXT NOT NULL,
	fallback_used INTEGER NOT NULL DEFAULT 0,
	urls_added    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS generation_sessions (
	id          TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	artifact    TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON generation_sessions(user_id, created_at);
`

// TurnRecord captures one completed conversation turn.
type TurnRecord struct {
	ID           string
	UserID       int64
	StageBefore  string
	StageAfter   string
	FallbackUsed bool
	URLsAdded    int
	CreatedAt    time.Time
}

// SessionRecord captures one completed generation attempt.
type SessionRecord struct {
	ID        string
	UserID    int64
	Outcome   string
	Artifact  string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store owns the database connection. SQLite supports a single writer, so
// the pool is pinned to one connection.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open creates (or reuses) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("records database ready: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// RecordTurn appends one turn record. Failures are returned to the caller
// but must never abort the turn that produced them.
func (s *Store) RecordTurn(ctx context.Context, rec *TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, user_id, stage_before, stage_after, fallback_used, urls_added, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.StageBefore, rec.StageAfter, rec.FallbackUsed, rec.URLsAdded, rec.CreatedAt,
	)
	if err != nil {
		return logx.Wrap(err, "failed to record turn")
	}
	return nil
}

// RecordSession appends one generation session record.
func (s *Store) RecordSession(ctx context.Context, rec *SessionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_sessions (id, user_id, outcome, artifact, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Outcome, rec.Artifact, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return logx.Wrap(err, "failed to record session")
	}
	return nil
}

// TurnCount returns the number of recorded turns for a user. Used by
// operational tooling and tests, never by the pipeline itself.
func (s *Store) TurnCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, logx.Wrap(err, "failed to count turns")
	}
	return n, nil
}

// SessionCount returns the number of recorded generation sessions for a user.
func (s *Store) SessionCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generation_sessions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, logx.Wrap(err, "failed to count sessions")
	}
	return n, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
