// Package history records finished runs in a SQLite table.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-processor/execution"
	"github.com/goliatone/go-processor/stats"
	_ "github.com/mattn/go-sqlite3"
)

const DefaultTable = "processor_runs"

// Record is one finished run.
type Record struct {
	RunID       string
	Processor   string
	Disposition string
	Total       *int
	Completed   int64
	Successful  int64
	Failed      int64
	Categories  []stats.Category
	StartedAt   time.Time
	CompletedAt time.Time
	FailedStage string
	Error       string
}

// RecordFromReport builds the record of a run of the given process type.
func RecordFromReport(processType string, r execution.Report) Record {
	return Record{
		RunID:       r.RunID,
		Processor:   processType,
		Disposition: r.Disposition.String(),
		Total:       r.TotalItems,
		Completed:   r.Completed,
		Successful:  r.Successful,
		Failed:      r.Failed,
		Categories:  r.Categories,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		FailedStage: string(r.FailedStage),
		Error:       r.Error,
	}
}

// Store persists run records.
type Store struct {
	db     *sql.DB
	table  string
	owned  bool
	schema sync.Once
	err    error
}

// NewStore uses db and table, creating the table on first use.
func NewStore(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Open connects to the sqlite database at dsn.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("history dsn cannot be empty")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	s := NewStore(db, DefaultTable)
	s.owned = true
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schema.Do(func() {
		q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT PRIMARY KEY,
			processor TEXT NOT NULL,
			disposition TEXT NOT NULL,
			total INTEGER,
			completed INTEGER NOT NULL,
			successful INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			categories TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			failed_stage TEXT,
			error TEXT
		)`, s.table)
		_, s.err = s.db.ExecContext(ctx, q)
	})
	return s.err
}

// Save inserts rec, replacing a previous record with the same run id.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return errors.New("history store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return err
	}
	var total sql.NullInt64
	if rec.Total != nil {
		total = sql.NullInt64{Int64: int64(*rec.Total), Valid: true}
	}

	q := fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(run_id, processor, disposition, total, completed, successful, failed, categories, started_at, completed_at, failed_stage, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		rec.RunID,
		rec.Processor,
		rec.Disposition,
		total,
		rec.Completed,
		rec.Successful,
		rec.Failed,
		string(categories),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		rec.FailedStage,
		rec.Error,
	)
	return err
}

// List returns the newest records first. An empty processType lists all
// processors and a limit below 1 lists everything.
func (s *Store) List(ctx context.Context, processType string, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store not configured")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT run_id, processor, disposition, total, completed, successful, failed, categories, started_at, completed_at, failed_stage, error FROM %s`, s.table)
	var args []any
	if processType != "" {
		q += ` WHERE processor = ?`
		args = append(args, processType)
	}
	q += ` ORDER BY started_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec          Record
			total        sql.NullInt64
			categories   sql.NullString
			startedAt    string
			completedAt  string
			failedStage  sql.NullString
			errorMessage sql.NullString
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Processor,
			&rec.Disposition,
			&total,
			&rec.Completed,
			&rec.Successful,
			&rec.Failed,
			&categories,
			&startedAt,
			&completedAt,
			&failedStage,
			&errorMessage,
		); err != nil {
			return nil, err
		}
		if total.Valid {
			n := int(total.Int64)
			rec.Total = &n
		}
		if categories.String != "" {
			_ = json.Unmarshal([]byte(categories.String), &rec.Categories)
		}
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			rec.StartedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
			rec.CompletedAt = ts
		}
		rec.FailedStage = failedStage.String
		rec.Error = errorMessage.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if s == nil || s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}
