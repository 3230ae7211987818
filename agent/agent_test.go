package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/richinex/sandboxagent/llm"
	"github.com/richinex/sandboxagent/llm/llmtest"
	"github.com/richinex/sandboxagent/model"
	"github.com/richinex/sandboxagent/sandbox"
	"github.com/richinex/sandboxagent/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	listFilesTurn  = `{"type":"tool","name":"list_files","args":{}}`
	writeHelloTurn = `{"type":"tool","name":"write_file","args":{"filePath":"hello.txt","content":"hi"}}`
	doneTurn       = `{"type":"final","content":"Done."}`
)

func newTestAgent(t *testing.T, completer Completer) (*Agent, sandbox.Sandbox) {
	t.Helper()
	sb, err := sandbox.New(filepath.Join(t.TempDir(), "sandbox"), 0)
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	registry, err := tools.WithDefaults(sb)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(DefaultConfig(), completer, tools.NewExecutor(registry, nil)), sb
}

func TestRunListWriteFinal(t *testing.T) {
	script := llmtest.NewScripted(
		llmtest.Text(listFilesTurn),
		llmtest.Text(writeHelloTurn),
		llmtest.Text(doneTurn),
	)
	a, sb := newTestAgent(t, script)

	result, err := a.Run(context.Background(), Request{
		Input:        "List files in sandbox, then write a hello.txt",
		IncludeSteps: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp := result.Response()
	if resp.Output != "Done." {
		t.Errorf("output = %q, want %q", resp.Output, "Done.")
	}
	if len(resp.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(resp.Steps), resp.Steps)
	}

	wantTypes := []model.StepType{model.StepTool, model.StepTool, model.StepFinal}
	wantNames := []string{tools.ToolListFiles, tools.ToolWriteFile, ""}
	for i, step := range resp.Steps {
		if step.Type != wantTypes[i] || step.Name != wantNames[i] {
			t.Errorf("step %d = %s/%s, want %s/%s", i, step.Type, step.Name, wantTypes[i], wantNames[i])
		}
	}
	if resp.Steps[0].Result != tools.EmptyDirectoryMarker {
		t.Errorf("list_files result = %q, want empty marker", resp.Steps[0].Result)
	}
	if resp.Steps[2].Content != "Done." {
		t.Errorf("final step content = %q", resp.Steps[2].Content)
	}

	data, err := os.ReadFile(filepath.Join(sb.Root(), "hello.txt"))
	if err != nil {
		t.Fatalf("hello.txt not written: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("hello.txt = %q, want %q", data, "hi")
	}

	meta := result.Metadata
	if meta.LLMCalls != 3 || meta.Iterations != 2 || len(meta.ToolCalls) != 2 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestRunOmitsStepsUnlessRequested(t *testing.T) {
	a, _ := newTestAgent(t, llmtest.NewScripted(llmtest.Text(listFilesTurn), llmtest.Text(doneTurn)))

	result, err := a.Run(context.Background(), Request{Input: "list"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp := result.Response(); resp.Steps != nil {
		t.Errorf("steps should be omitted, got %+v", resp.Steps)
	}
	if len(result.Steps) != 2 {
		t.Errorf("full trace should still be kept, got %d steps", len(result.Steps))
	}

	body, err := json.Marshal(result.Response())
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"output":"Done."}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRunConversationShape(t *testing.T) {
	script := llmtest.NewScripted(llmtest.Text("```json\n"+listFilesTurn+"\n```"), llmtest.Text(doneTurn))
	a, _ := newTestAgent(t, script)

	if _, err := a.Run(context.Background(), Request{Input: "what is here?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := script.Messages(0)
	if len(first) != 2 || first[0].Role != "system" || first[1].Role != "user" || first[1].Content != "what is here?" {
		t.Fatalf("unexpected seed messages: %+v", first)
	}
	for _, name := range []string{tools.ToolListFiles, tools.ToolReadFile, tools.ToolWriteFile} {
		if !strings.Contains(first[0].Content, name) {
			t.Errorf("system prompt should mention %s", name)
		}
	}

	second := script.Messages(1)
	if len(second) != 4 {
		t.Fatalf("expected 4 messages on second call, got %d", len(second))
	}
	if second[2].Role != "assistant" || !strings.HasPrefix(second[2].Content, "```json") {
		t.Errorf("assistant turn should be kept verbatim, got %+v", second[2])
	}
	want := `{"type":"observation","name":"list_files","result":"(empty directory)"}`
	if second[3].Role != "user" || second[3].Content != want {
		t.Errorf("observation = %+v, want user %s", second[3], want)
	}
}

func TestRunMaxIterations(t *testing.T) {
	tests := []struct {
		name      string
		config    int
		requested int
		wantCalls int
	}{
		{name: "default cap", config: DefaultMaxIterations, requested: 0, wantCalls: DefaultMaxIterations},
		{name: "request override", config: DefaultMaxIterations, requested: 2, wantCalls: 2},
		{name: "cap of one", config: 1, requested: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := llmtest.Forever(listFilesTurn)
			a, _ := newTestAgent(t, script)
			a.config.MaxIterations = tt.config

			result, err := a.Run(context.Background(), Request{Input: "loop", MaxIterations: tt.requested})
			if !errors.Is(err, ErrMaxIterations) {
				t.Fatalf("expected ErrMaxIterations, got %v", err)
			}
			if script.Calls() != tt.wantCalls {
				t.Errorf("model calls = %d, want %d", script.Calls(), tt.wantCalls)
			}
			if result.Metadata.Iterations != tt.wantCalls {
				t.Errorf("iterations = %d, want %d", result.Metadata.Iterations, tt.wantCalls)
			}
		})
	}
}

func TestRunMalformedFirstTurn(t *testing.T) {
	script := llmtest.NewScripted(llmtest.Text("Sure! I'll create the file for you."))
	a, sb := newTestAgent(t, script)

	result, err := a.Run(context.Background(), Request{Input: "write hello.txt"})
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if script.Calls() != 1 {
		t.Errorf("model calls = %d, want 1", script.Calls())
	}
	if len(result.Metadata.ToolCalls) != 0 || len(result.Steps) != 0 {
		t.Errorf("no tools should run: %+v", result)
	}
	if _, statErr := os.Stat(sb.Root()); !errors.Is(statErr, fs.ErrNotExist) {
		t.Errorf("sandbox should be untouched, stat err = %v", statErr)
	}
}

func TestRunToolFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name    string
		turn    string
		wantErr error
	}{
		{name: "unknown tool", turn: `{"type":"tool","name":"delete_file","args":{"filePath":"a"}}`, wantErr: tools.ErrUnknownTool},
		{name: "bad arguments", turn: `{"type":"tool","name":"read_file","args":{"path":"a"}}`, wantErr: tools.ErrInvalidArguments},
		{name: "path escape", turn: `{"type":"tool","name":"read_file","args":{"filePath":"../../etc/passwd"}}`, wantErr: sandbox.ErrPathEscape},
		{name: "missing file", turn: `{"type":"tool","name":"read_file","args":{"filePath":"nope.txt"}}`, wantErr: fs.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := llmtest.NewScripted(llmtest.Text(tt.turn), llmtest.Text(doneTurn))
			a, _ := newTestAgent(t, script)

			result, err := a.Run(context.Background(), Request{Input: "go", IncludeSteps: true})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if script.Calls() != 1 {
				t.Errorf("failure must not be fed back to the model, calls = %d", script.Calls())
			}
			if result.Output != "" || len(result.Steps) != 0 {
				t.Errorf("no partial result expected: %+v", result)
			}
		})
	}
}

func TestRunInvalidInput(t *testing.T) {
	script := llmtest.Forever(doneTurn)
	a, _ := newTestAgent(t, script)

	for _, req := range []Request{
		{Input: ""},
		{Input: "   \n"},
		{Input: "ok", MaxIterations: -1},
		{Input: "ok", MaxIterations: DefaultMaxIterationsLimit + 1},
	} {
		if _, err := a.Run(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Run(%+v) error = %v, want ErrInvalidInput", req, err)
		}
	}
	if script.Calls() != 0 {
		t.Errorf("invalid input must not reach the model, calls = %d", script.Calls())
	}
}

func TestRunModelErrorAndUsage(t *testing.T) {
	upstream := errors.New("connection reset")
	script := llmtest.NewScripted(
		llmtest.Response{Content: listFilesTurn, Usage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
		llmtest.Response{Err: upstream},
	)
	a, _ := newTestAgent(t, script)

	result, err := a.Run(context.Background(), Request{Input: "go"})
	if !errors.Is(err, ErrModelCall) || !errors.Is(err, upstream) {
		t.Fatalf("expected ErrModelCall wrapping upstream error, got %v", err)
	}
	if result.Metadata.TokenUsage.TotalTokens != 15 {
		t.Errorf("token usage = %+v", result.Metadata.TokenUsage)
	}
	if result.Metadata.LLMCalls != 2 {
		t.Errorf("llm calls = %d, want 2", result.Metadata.LLMCalls)
	}
}

func TestRunCancelledContext(t *testing.T) {
	script := llmtest.Forever(doneTurn)
	a, _ := newTestAgent(t, script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, Request{Input: "go"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if script.Calls() != 0 {
		t.Errorf("cancelled run must not call the model")
	}
}

func TestBuilder(t *testing.T) {
	sb, err := sandbox.New(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	registry, err := tools.WithDefaults(sb)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewBuilder("x").Build(); err == nil {
		t.Error("expected error without completer")
	}
	if _, err := NewBuilder("x").Completer(llmtest.Forever(doneTurn)).
		Executor(tools.NewExecutor(registry, nil)).
		MaxIterations(10).MaxIterationsLimit(5).Build(); err == nil {
		t.Error("expected error when default cap exceeds the limit")
	}

	a, err := NewBuilder("files").
		Preamble("You manage notes.").
		Completer(llmtest.Forever(doneTurn)).
		Executor(tools.NewExecutor(registry, nil)).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Name() != "files" || !strings.HasPrefix(a.SystemPrompt(), "You manage notes.") {
		t.Errorf("unexpected agent: %s / %q", a.Name(), a.SystemPrompt())
	}
}
