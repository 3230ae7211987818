package tools

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/sandboxagent/sandbox"
)

func newTestSandbox(t *testing.T) sandbox.Sandbox {
	t.Helper()
	sb, err := sandbox.New(filepath.Join(t.TempDir(), "sandbox"), 64)
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	return sb
}

func TestListFilesEmptySandbox(t *testing.T) {
	sb := newTestSandbox(t)
	tool := NewListFilesTool(sb)

	out, err := tool.Execute(context.Background(), Args{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != EmptyDirectoryMarker {
		t.Errorf("expected %q, got %q", EmptyDirectoryMarker, out)
	}
	if _, err := os.Stat(sb.Root()); err != nil {
		t.Errorf("expected sandbox root to be created: %v", err)
	}
}

func TestListFilesTopLevelOnly(t *testing.T) {
	sb := newTestSandbox(t)
	if err := os.MkdirAll(filepath.Join(sb.Root(), "docs", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sb.Root(), "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sb.Root(), "docs", "deep", "x.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := NewListFilesTool(sb).Execute(context.Background(), Args{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "b.txt\ndocs" {
		t.Errorf("expected top-level names, got %q", out)
	}
}

func TestListFilesRejectsArguments(t *testing.T) {
	tool := NewListFilesTool(newTestSandbox(t))
	err := tool.Validate(Args{"path": "."})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()
	content := "line one\nline two\ttabbed ünïcode\n"

	msg, err := NewWriteFileTool(sb).Execute(ctx, Args{"filePath": "notes/today.txt", "content": content})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(msg, "notes/today.txt") {
		t.Errorf("confirmation should reference the relative path, got %q", msg)
	}
	if strings.Contains(msg, sb.Root()) {
		t.Errorf("confirmation should not leak the resolved path, got %q", msg)
	}

	got, err := NewReadFileTool(sb).Execute(ctx, Args{"filePath": "notes/today.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != content {
		t.Errorf("round trip mismatch: got %q, want %q", got, content)
	}
}

func TestWhitespaceContentRoundTrip(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	for _, content := range []string{"\n", "  ", "\t\n"} {
		args := Args{"filePath": "blank.txt", "content": content}
		if err := NewWriteFileTool(sb).Validate(args); err != nil {
			t.Fatalf("Validate(%q): %v", content, err)
		}
		if _, err := NewWriteFileTool(sb).Execute(ctx, args); err != nil {
			t.Fatalf("write %q: %v", content, err)
		}
		got, err := NewReadFileTool(sb).Execute(ctx, Args{"filePath": "blank.txt"})
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != content {
			t.Errorf("round trip mismatch: got %q, want %q", got, content)
		}
	}
}

func TestWriteOverwrites(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()
	write := NewWriteFileTool(sb)

	for _, c := range []string{"first", "second"} {
		if _, err := write.Execute(ctx, Args{"filePath": "f.txt", "content": c}); err != nil {
			t.Fatalf("write %q: %v", c, err)
		}
	}

	got, err := NewReadFileTool(sb).Execute(ctx, Args{"filePath": "f.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "second" {
		t.Errorf("expected overwrite, got %q", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	sb := newTestSandbox(t)
	_, err := NewReadFileTool(sb).Execute(context.Background(), Args{"filePath": "nope.txt"})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestReadWriteRejectEscape(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()

	if _, err := NewReadFileTool(sb).Execute(ctx, Args{"filePath": "../secret"}); !errors.Is(err, sandbox.ErrPathEscape) {
		t.Errorf("read: expected ErrPathEscape, got %v", err)
	}
	if _, err := NewWriteFileTool(sb).Execute(ctx, Args{"filePath": "../../x", "content": "x"}); !errors.Is(err, sandbox.ErrPathEscape) {
		t.Errorf("write: expected ErrPathEscape, got %v", err)
	}
}

func TestFileSizeLimit(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := context.Background()
	big := strings.Repeat("x", int(sb.MaxFileBytes())+1)

	if _, err := NewWriteFileTool(sb).Execute(ctx, Args{"filePath": "big.txt", "content": big}); err == nil {
		t.Error("expected write of oversized content to fail")
	}

	if err := sb.EnsureDirectory(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sb.Root(), "big.txt"), []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReadFileTool(sb).Execute(ctx, Args{"filePath": "big.txt"}); err == nil {
		t.Error("expected read of oversized file to fail")
	}
}

func TestArgumentValidation(t *testing.T) {
	sb := newTestSandbox(t)

	tests := []struct {
		name string
		tool Tool
		args Args
	}{
		{name: "read missing path", tool: NewReadFileTool(sb), args: Args{}},
		{name: "read null path", tool: NewReadFileTool(sb), args: Args{"filePath": nil}},
		{name: "read numeric path", tool: NewReadFileTool(sb), args: Args{"filePath": 42.0}},
		{name: "read blank path", tool: NewReadFileTool(sb), args: Args{"filePath": "   "}},
		{name: "write missing content", tool: NewWriteFileTool(sb), args: Args{"filePath": "a.txt"}},
		{name: "write empty content", tool: NewWriteFileTool(sb), args: Args{"filePath": "a.txt", "content": ""}},
		{name: "write object content", tool: NewWriteFileTool(sb), args: Args{"filePath": "a.txt", "content": map[string]any{}}},
		{name: "write empty path", tool: NewWriteFileTool(sb), args: Args{"filePath": "", "content": "x"}},
		{name: "write blank path", tool: NewWriteFileTool(sb), args: Args{"filePath": " \n", "content": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tool.Validate(tt.args)
			if !errors.Is(err, ErrInvalidArguments) {
				t.Errorf("Validate() error = %v, want ErrInvalidArguments", err)
			}
		})
	}
}
