// Copyright 2026 The Inkhost Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time interface assertions.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// SQLiteStore persists execution records to a SQLite database so
// history survives restarts.
type SQLiteStore struct {
	db *sql.DB

	// maxEntries caps the number of retained records
	maxEntries int
}

// SQLiteConfig contains SQLite store configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxEntries caps the number of retained records (default: 200).
	MaxEntries int
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed history store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite serializes writes, so only 1 connection
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 200
	}
	s := &SQLiteStore{db: db, maxEntries: maxEntries}

	if err := s.configurePragmas(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// configurePragmas sets SQLite configuration options.
func (s *SQLiteStore) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",  // 5 second timeout for lock contention
		"PRAGMA synchronous=NORMAL", // Balance between performance and durability
		"PRAGMA journal_mode=WAL",   // WAL mode for concurrent reads
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			document_path TEXT NOT NULL,
			server_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			arguments TEXT,
			status TEXT NOT NULL,
			error TEXT,
			cached INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_document
			ON executions(document_path, seq DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Append records an execution and prunes records beyond the cap.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
			(id, document_path, server_id, tool, arguments, status, error, cached, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocumentPath, rec.ServerID, rec.Tool, rec.Arguments,
		rec.Status, rec.Error, rec.Cached, rec.StartedAt.UTC(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to append execution: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM executions
		WHERE seq <= (SELECT MAX(seq) FROM executions) - ?`,
		s.maxEntries,
	)
	if err != nil {
		return fmt.Errorf("failed to prune executions: %w", err)
	}

	return nil
}

// List returns the most recent records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = s.maxEntries
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_path, server_id, tool, arguments, status, error, cached, started_at, duration_ms
		FROM executions
		ORDER BY seq DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByDocument returns the most recent records for one document.
func (s *SQLiteStore) ListByDocument(ctx context.Context, path string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = s.maxEntries
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_path, server_id, tool, arguments, status, error, cached, started_at, duration_ms
		FROM executions
		WHERE document_path = ?
		ORDER BY seq DESC
		LIMIT ?`,
		path, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Clear drops all records.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM executions`); err != nil {
		return fmt.Errorf("failed to clear executions: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec        Record
			errMsg     sql.NullString
			args       sql.NullString
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.DocumentPath, &rec.ServerID, &rec.Tool, &args,
			&rec.Status, &errMsg, &rec.Cached, &rec.StartedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		rec.Arguments = args.String
		rec.Error = errMsg.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return records, nil
}
