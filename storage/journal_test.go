package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/richinex/sandboxagent/llm"
	"github.com/richinex/sandboxagent/model"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRun(id string, offset time.Duration) RunRecord {
	started := base.Add(offset)
	return RunRecord{
		ID:     id,
		Input:  "Create hello.txt",
		Status: RunSucceeded,
		Output: "Done.",
		Steps: []model.Step{
			model.ToolStep("write_file", map[string]any{"filePath": "hello.txt", "content": "Hi"}, "Wrote 2 bytes to hello.txt"),
			model.FinalStep("Done."),
		},
		ToolCalls: []model.ToolCall{
			{Name: "write_file", InputSize: 40, OutputSize: 26, DurationMs: 1, Success: true},
		},
		Iterations: 1,
		LLMCalls:   2,
		Usage:      llm.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

// runJournalContract exercises behaviour every backend must share.
func runJournalContract(t *testing.T, journal RunJournal) {
	t.Helper()
	ctx := context.Background()

	t.Run("get unknown", func(t *testing.T) {
		_, err := journal.Get(ctx, "missing")
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("list empty", func(t *testing.T) {
		runs, err := journal.List(ctx, 10)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if runs == nil || len(runs) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", runs)
		}
	})

	t.Run("record and get", func(t *testing.T) {
		want := sampleRun("run-1", 0)
		if err := journal.Record(ctx, want); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		got, err := journal.Get(ctx, "run-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Input != want.Input || got.Output != want.Output || got.Status != RunSucceeded {
			t.Errorf("unexpected record: %+v", got)
		}
		if len(got.Steps) != 2 || got.Steps[0].Type != model.StepTool || got.Steps[1].Content != "Done." {
			t.Errorf("steps not preserved: %+v", got.Steps)
		}
		if got.Steps[0].Args["filePath"] != "hello.txt" {
			t.Errorf("args not preserved: %+v", got.Steps[0].Args)
		}
		if len(got.ToolCalls) != 1 || !got.ToolCalls[0].Success {
			t.Errorf("tool calls not preserved: %+v", got.ToolCalls)
		}
		if got.Usage != want.Usage || got.LLMCalls != 2 || got.Iterations != 1 {
			t.Errorf("metadata not preserved: %+v", got)
		}
		if !got.StartedAt.Equal(want.StartedAt) || got.Duration() != 1500*time.Millisecond {
			t.Errorf("timestamps not preserved: %v %v", got.StartedAt, got.FinishedAt)
		}
	})

	t.Run("failed run without steps", func(t *testing.T) {
		failed := RunRecord{
			ID:           "run-failed",
			Input:        "loop",
			Status:       RunFailed,
			ErrorCode:    "max_iterations_exceeded",
			ErrorMessage: "max iterations exceeded",
			StartedAt:    base.Add(-time.Hour),
			FinishedAt:   base.Add(-time.Hour),
		}
		if err := journal.Record(ctx, failed); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		got, err := journal.Get(ctx, "run-failed")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != RunFailed || got.ErrorCode != "max_iterations_exceeded" {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.Steps == nil || got.ToolCalls == nil {
			t.Errorf("slices should be empty, not nil: %+v", got)
		}
	})

	t.Run("record replaces", func(t *testing.T) {
		updated := sampleRun("run-1", 0)
		updated.Output = "Changed."
		if err := journal.Record(ctx, updated); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		got, err := journal.Get(ctx, "run-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Output != "Changed." {
			t.Errorf("output = %q, want replacement", got.Output)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		for i := 2; i <= 4; i++ {
			run := sampleRun(fmt.Sprintf("run-%d", i), time.Duration(i)*time.Minute)
			if err := journal.Record(ctx, run); err != nil {
				t.Fatalf("Record failed: %v", err)
			}
		}

		runs, err := journal.List(ctx, 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{"run-4", "run-3", "run-2", "run-1", "run-failed"}
		if len(runs) != len(want) {
			t.Fatalf("got %d runs, want %d", len(runs), len(want))
		}
		for i, id := range want {
			if runs[i].ID != id {
				t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, id)
			}
		}

		limited, err := journal.List(ctx, 2)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(limited) != 2 || limited[0].ID != "run-4" || limited[1].ID != "run-3" {
			t.Errorf("unexpected limited list: %v", limited)
		}
	})
}

func TestMemoryJournalContract(t *testing.T) {
	journal, err := NewMemoryJournal(10)
	if err != nil {
		t.Fatalf("Failed to create journal: %v", err)
	}
	runJournalContract(t, journal)
}

func TestSqliteJournalContract(t *testing.T) {
	journal, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create journal: %v", err)
	}
	defer journal.Close()
	runJournalContract(t, journal)
}

func TestSqliteJournalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	ctx := context.Background()

	journal, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	if err := journal.Record(ctx, sampleRun("persisted", 0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	journal.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persisted")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Output != "Done." {
		t.Errorf("output = %q", got.Output)
	}
}

func TestRedisJournalContract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	journal := NewRedisFromClient(client)
	defer journal.Close()
	runJournalContract(t, journal)
}

func TestRedisJournalExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	journal := NewRedisFromClient(client, WithTTL(time.Minute), WithPrefix("test:"))
	defer journal.Close()
	ctx := context.Background()

	if err := journal.Record(ctx, sampleRun("short-lived", 0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !mr.Exists("test:short-lived") {
		t.Fatal("expected prefixed key")
	}

	mr.FastForward(2 * time.Minute)

	if _, err := journal.Get(ctx, "short-lived"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after expiry, got %v", err)
	}
	runs, err := journal.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %v", runs)
	}
	members, err := mr.ZMembers("test:index")
	if err == nil && len(members) != 0 {
		t.Errorf("expired run should be pruned from index, got %v", members)
	}
}

func TestRedisJournalListRefillsAfterPruning(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	durable := NewRedisFromClient(client, WithPrefix("page:"))
	expiring := NewRedisFromClient(client, WithPrefix("page:"), WithTTL(time.Minute))
	defer durable.Close()
	ctx := context.Background()

	for i, id := range []string{"old-1", "old-2", "old-3"} {
		if err := durable.Record(ctx, sampleRun(id, time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Record(%s) failed: %v", id, err)
		}
	}
	for i, id := range []string{"new-1", "new-2"} {
		if err := expiring.Record(ctx, sampleRun(id, time.Hour+time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Record(%s) failed: %v", id, err)
		}
	}

	mr.FastForward(2 * time.Minute)

	runs, err := durable.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "old-3" || runs[1].ID != "old-2" {
		t.Fatalf("expected [old-3 old-2], got %v", runIDs(runs))
	}
	members, err := mr.ZMembers("page:index")
	if err != nil {
		t.Fatalf("ZMembers failed: %v", err)
	}
	if len(members) != 3 {
		t.Errorf("expected expired entries pruned, index = %v", members)
	}
}

func runIDs(runs []RunRecord) []string {
	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	return ids
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	journal, err := OpenRedis(ctx, "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("OpenRedis failed: %v", err)
	}
	defer journal.Close()

	if _, err := OpenRedis(ctx, "not a url"); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestMemoryJournalEvictsOldest(t *testing.T) {
	journal, err := NewMemoryJournal(2)
	if err != nil {
		t.Fatalf("Failed to create journal: %v", err)
	}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := journal.Record(ctx, sampleRun(fmt.Sprintf("run-%d", i), time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	if journal.Len() != 2 {
		t.Errorf("len = %d, want 2", journal.Len())
	}
	if _, err := journal.Get(ctx, "run-1"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("oldest run should be evicted, got %v", err)
	}
	runs, _ := journal.List(ctx, 0)
	if len(runs) != 2 || runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Errorf("unexpected list after eviction: %v", runs)
	}
}

func TestMemoryJournalReturnsCopies(t *testing.T) {
	journal, _ := NewMemoryJournal(1)
	ctx := context.Background()
	_ = journal.Record(ctx, sampleRun("run-1", 0))

	got, _ := journal.Get(ctx, "run-1")
	got.Steps[0].Name = "mutated"

	again, _ := journal.Get(ctx, "run-1")
	if again.Steps[0].Name != "write_file" {
		t.Errorf("stored record was mutated: %+v", again.Steps[0])
	}
}

func TestNewMemoryJournalRejectsZeroCapacity(t *testing.T) {
	if _, err := NewMemoryJournal(0); err == nil {
		t.Error("expected error for zero capacity")
	}
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	var journal RunJournal = Discard{}
	if err := journal.Record(ctx, sampleRun("x", 0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := journal.Get(ctx, "x"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	runs, err := journal.List(ctx, 0)
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}
