// Package storage provides in-memory run storage.
//
// Information Hiding:
// - Ring buffer structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and single-process deployments

package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryJournal implements RunJournal with a bounded ring buffer.
// The oldest run is evicted once capacity is reached.
// Data is lost when process terminates.
type MemoryJournal struct {
	mu       sync.RWMutex
	capacity int
	runs     []RunRecord // ring, next write at head
	head     int
	byID     map[string]int
}

// NewMemoryJournal creates an in-memory journal holding at most capacity runs.
func NewMemoryJournal(capacity int) (*MemoryJournal, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("journal capacity must be positive, got %d", capacity)
	}
	return &MemoryJournal{
		capacity: capacity,
		runs:     make([]RunRecord, 0, capacity),
		byID:     make(map[string]int, capacity),
	}, nil
}

// Record stores a run, evicting the oldest when full.
func (j *MemoryJournal) Record(_ context.Context, run RunRecord) error {
	run = cloneRun(run.normalize())

	j.mu.Lock()
	defer j.mu.Unlock()

	if i, ok := j.byID[run.ID]; ok {
		j.runs[i] = run
		return nil
	}

	if len(j.runs) < j.capacity {
		j.byID[run.ID] = len(j.runs)
		j.runs = append(j.runs, run)
		return nil
	}

	delete(j.byID, j.runs[j.head].ID)
	j.runs[j.head] = run
	j.byID[run.ID] = j.head
	j.head = (j.head + 1) % j.capacity
	return nil
}

// Get returns a copy of the run with the given ID.
func (j *MemoryJournal) Get(_ context.Context, id string) (RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	i, ok := j.byID[id]
	if !ok {
		return RunRecord{}, ErrRunNotFound
	}
	return cloneRun(j.runs[i]), nil
}

// List returns runs most recently started first.
func (j *MemoryJournal) List(_ context.Context, limit int) ([]RunRecord, error) {
	j.mu.RLock()
	n := len(j.runs)
	runs := make([]RunRecord, n)
	// Newest insertion first; head is the oldest slot once the ring is full.
	for k := 0; k < n; k++ {
		runs[k] = cloneRun(j.runs[(j.head+n-1-k)%n])
	}
	j.mu.RUnlock()

	slices.SortStableFunc(runs, func(a, b RunRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Len reports how many runs are held.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.runs)
}

// Close is a no-op.
func (j *MemoryJournal) Close() error { return nil }

// cloneRun copies the slices so callers cannot mutate stored records.
func cloneRun(run RunRecord) RunRecord {
	run.Steps = slices.Clone(run.Steps)
	run.ToolCalls = slices.Clone(run.ToolCalls)
	return run
}

// Verify MemoryJournal implements RunJournal
var _ RunJournal = (*MemoryJournal)(nil)
