// Package sqlite keeps a local journal of dashboard snapshots and operator
// actions in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/benvon/chronos-console/pkg/model"
)

// timeFormat is fixed width so rows sort by recorded_at as text
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Entry is one journal row
type Entry struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	RecordedAt time.Time       `json:"recorded_at"`
	Body       json.RawMessage `json:"body"`
}

// Sink implements the journal sink on SQLite. Document IDs are the primary
// key, so rewriting a document replaces it.
type Sink struct {
	path string
	db   *sql.DB
	now  func() time.Time
}

// NewSink creates a journal sink for the database file at path
func NewSink(path string) *Sink {
	return &Sink{path: path, now: time.Now}
}

// newSinkWithDB wraps an already opened database
func newSinkWithDB(db *sql.DB) *Sink {
	return &Sink{db: db, now: time.Now}
}

// Info returns metadata about the sink
func (s *Sink) Info() model.SinkInfo {
	return model.SinkInfo{
		Name:        "sqlite",
		Version:     "1.0.0",
		Description: "Local SQLite journal of snapshots and operator actions",
	}
}

// Open opens the database and creates the schema if needed
func (s *Sink) Open(ctx context.Context) error {
	if s.db == nil {
		db, err := sql.Open("sqlite3", s.path)
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		s.db = db
	}
	if err := s.initSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// initSchema creates the necessary tables if they don't exist
func (s *Sink) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS journal (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			body TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_recorded_at ON journal(recorded_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Write stores documents in a single transaction
func (s *Sink) Write(ctx context.Context, docs []model.Doc) (model.WriteResult, error) {
	if len(docs) == 0 {
		return model.WriteResult{}, nil
	}
	if s.db == nil {
		return model.WriteResult{}, errors.New("sink is not open")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WriteResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO journal (id, type, recorded_at, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			recorded_at = excluded.recorded_at,
			body = excluded.body
	`

	var result model.WriteResult
	recordedAt := s.now().UTC().Format(timeFormat)
	for _, doc := range docs {
		body, err := json.Marshal(doc.Body)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: marshaling document: %v", doc.ID, err))
			continue
		}
		if _, err := tx.ExecContext(ctx, query, doc.ID, doc.Type, recordedAt, string(body)); err != nil {
			return model.WriteResult{}, fmt.Errorf("inserting %s: %w", doc.ID, err)
		}
		result.SuccessCount++
	}

	if err := tx.Commit(); err != nil {
		return model.WriteResult{}, fmt.Errorf("committing journal: %w", err)
	}
	return result, nil
}

// Recent returns up to limit entries, newest first. An empty docType matches all.
func (s *Sink) Recent(ctx context.Context, docType string, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, errors.New("sink is not open")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, type, recorded_at, body FROM journal`
	args := []any{}
	if docType != "" {
		query += ` WHERE type = ?`
		args = append(args, docType)
	}
	query += ` ORDER BY recorded_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt string
			body       string
		)
		if err := rows.Scan(&e.ID, &e.Type, &recordedAt, &body); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		t, err := time.Parse(timeFormat, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		e.RecordedAt = t
		e.Body = json.RawMessage(body)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}

// Ping checks the database connection
func (s *Sink) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("sink is not open")
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Sink) Close(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
