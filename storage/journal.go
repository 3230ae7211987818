// Package storage provides the run journal: an audit log of agent runs.
//
// Information Hiding:
// - Storage backend implementation details hidden behind RunJournal
// - Allows swapping between memory, SQLite and Redis without API changes
// - Records are write-once; nothing here is ever fed back into a conversation

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/richinex/sandboxagent/llm"
	"github.com/richinex/sandboxagent/model"
)

// ErrRunNotFound is returned by Get for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the audit entry for one invocation.
type RunRecord struct {
	ID           string           `json:"id"`
	Input        string           `json:"input"`
	Status       RunStatus        `json:"status"`
	Output       string           `json:"output,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Steps        []model.Step     `json:"steps"`
	ToolCalls    []model.ToolCall `json:"tool_calls"`
	Iterations   int              `json:"iterations"`
	LLMCalls     int              `json:"llm_calls"`
	Usage        llm.TokenUsage   `json:"usage"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// normalize replaces nil slices so every backend returns the same shape.
func (r RunRecord) normalize() RunRecord {
	if r.Steps == nil {
		r.Steps = []model.Step{}
	}
	if r.ToolCalls == nil {
		r.ToolCalls = []model.ToolCall{}
	}
	return r
}

// RunJournal stores run records.
// Implementations must be safe for concurrent use.
type RunJournal interface {
	// Record stores a finished run. Recording an existing ID replaces it.
	Record(ctx context.Context, run RunRecord) error

	// Get returns one run or ErrRunNotFound.
	Get(ctx context.Context, id string) (RunRecord, error)

	// List returns up to limit runs, most recently started first.
	// A limit of zero or less returns every stored run.
	List(ctx context.Context, limit int) ([]RunRecord, error)

	// Close releases backend resources.
	Close() error
}

// Discard is a journal that keeps nothing.
type Discard struct{}

func (Discard) Record(context.Context, RunRecord) error { return nil }

func (Discard) Get(context.Context, string) (RunRecord, error) {
	return RunRecord{}, ErrRunNotFound
}

func (Discard) List(context.Context, int) ([]RunRecord, error) {
	return []RunRecord{}, nil
}

func (Discard) Close() error { return nil }

var _ RunJournal = Discard{}
