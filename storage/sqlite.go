// Package storage provides SQLite run storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteJournal implements RunJournal using SQLite.
// Steps and tool calls are stored as JSON columns.
type SqliteJournal struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteJournal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	journal := &SqliteJournal{db: db}
	if err := journal.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteJournal, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	journal := &SqliteJournal{db: db}
	if err := journal.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// Close closes the database connection.
func (s *SqliteJournal) Close() error {
	return s.db.Close()
}

func (s *SqliteJournal) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			status TEXT NOT NULL,
			output TEXT NOT NULL DEFAULT '',
			error_code TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			steps TEXT NOT NULL,
			tool_calls TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			llm_calls INTEGER NOT NULL,
			prompt_tokens INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record stores a run.
func (s *SqliteJournal) Record(ctx context.Context, run RunRecord) error {
	run = run.normalize()

	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	toolCalls, err := json.Marshal(run.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to encode tool calls: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, input, status, output, error_code, error_message, steps, tool_calls,
		 iterations, llm_calls, prompt_tokens, completion_tokens, total_tokens, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Input,
		string(run.Status),
		run.Output,
		run.ErrorCode,
		run.ErrorMessage,
		string(steps),
		string(toolCalls),
		run.Iterations,
		run.LLMCalls,
		run.Usage.PromptTokens,
		run.Usage.CompletionTokens,
		run.Usage.TotalTokens,
		run.StartedAt.UnixNano(),
		run.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	return nil
}

const selectRun = `
	SELECT id, input, status, output, error_code, error_message, steps, tool_calls,
	       iterations, llm_calls, prompt_tokens, completion_tokens, total_tokens, started_at, finished_at
	FROM runs`

// Get returns one run.
func (s *SqliteJournal) Get(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns runs most recently started first.
func (s *SqliteJournal) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, selectRun+" ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{} // Start with empty slice, not nil
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		run                 RunRecord
		status              string
		steps, toolCalls    string
		startedAt, finished int64
	)
	err := row.Scan(
		&run.ID,
		&run.Input,
		&status,
		&run.Output,
		&run.ErrorCode,
		&run.ErrorMessage,
		&steps,
		&toolCalls,
		&run.Iterations,
		&run.LLMCalls,
		&run.Usage.PromptTokens,
		&run.Usage.CompletionTokens,
		&run.Usage.TotalTokens,
		&startedAt,
		&finished,
	)
	if err != nil {
		return RunRecord{}, err
	}

	run.Status = RunStatus(status)
	run.StartedAt = time.Unix(0, startedAt).UTC()
	run.FinishedAt = time.Unix(0, finished).UTC()
	if err := json.Unmarshal([]byte(steps), &run.Steps); err != nil {
		return RunRecord{}, fmt.Errorf("decode steps: %w", err)
	}
	if err := json.Unmarshal([]byte(toolCalls), &run.ToolCalls); err != nil {
		return RunRecord{}, fmt.Errorf("decode tool calls: %w", err)
	}
	return run.normalize(), nil
}

// Verify SqliteJournal implements RunJournal
var _ RunJournal = (*SqliteJournal)(nil)
