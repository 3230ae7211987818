package agent

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseToolAction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantArgs map[string]any
	}{
		{
			name:     "with args",
			input:    `{"type":"tool","name":"write_file","args":{"filePath":"hello.txt","content":"hi"}}`,
			wantName: "write_file",
			wantArgs: map[string]any{"filePath": "hello.txt", "content": "hi"},
		},
		{
			name:     "args absent",
			input:    `{"type":"tool","name":"list_files"}`,
			wantName: "list_files",
			wantArgs: map[string]any{},
		},
		{
			name:     "args null",
			input:    `{"type":"tool","name":"list_files","args":null}`,
			wantName: "list_files",
			wantArgs: map[string]any{},
		},
		{
			name:     "fenced with tag",
			input:    "```json\n{\"type\":\"tool\",\"name\":\"read_file\",\"args\":{\"filePath\":\"a.txt\"}}\n```",
			wantName: "read_file",
			wantArgs: map[string]any{"filePath": "a.txt"},
		},
		{
			name:     "fenced without tag and padded",
			input:    "  \n```\n{\"type\":\"tool\",\"name\":\"list_files\",\"args\":{}}\n```\n ",
			wantName: "list_files",
			wantArgs: map[string]any{},
		},
		{
			name:     "unknown tool names pass through",
			input:    `{"type":"tool","name":"delete_everything","args":{"x":true}}`,
			wantName: "delete_everything",
			wantArgs: map[string]any{"x": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tool, ok := action.(ToolAction)
			if !ok {
				t.Fatalf("expected ToolAction, got %T", action)
			}
			if tool.Name != tt.wantName {
				t.Errorf("name = %q, want %q", tool.Name, tt.wantName)
			}
			if len(tool.Args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", tool.Args, tt.wantArgs)
			}
			for k, want := range tt.wantArgs {
				if tool.Args[k] != want {
					t.Errorf("args[%q] = %v, want %v", k, tool.Args[k], want)
				}
			}
		})
	}
}

func TestParseToolActionPreservesNestedArgs(t *testing.T) {
	action, err := Parse(`{"type":"tool","name":"x","args":{"n":10,"list":[1,"a"],"obj":{"k":null}}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := action.(ToolAction).Args
	if n, ok := args["n"].(json.Number); !ok || n.String() != "10" {
		t.Errorf("number not preserved: %#v", args["n"])
	}
	list, ok := args["list"].([]any)
	if !ok || len(list) != 2 {
		t.Errorf("list not preserved: %#v", args["list"])
	}
	obj, ok := args["obj"].(map[string]any)
	if !ok {
		t.Fatalf("object not preserved: %#v", args["obj"])
	}
	if v, present := obj["k"]; !present || v != nil {
		t.Errorf("null member not preserved: %#v", obj)
	}
}

func TestParseFinalAction(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"type":"final","content":"Done."}`, want: "Done."},
		{name: "empty content", input: `{"type":"final","content":""}`, want: ""},
		{name: "extra fields ignored", input: `{"type":"final","content":"ok","thought":"done"}`, want: "ok"},
		{name: "fenced", input: "```json\n{\"type\":\"final\",\"content\":\"multi\\nline\"}\n```", want: "multi\nline"},
		{name: "single line fence with tag", input: "```json {\"type\":\"final\",\"content\":\"x\"}```", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			final, ok := action.(FinalAction)
			if !ok {
				t.Fatalf("expected FinalAction, got %T", action)
			}
			if final.Content != tt.want {
				t.Errorf("content = %q, want %q", final.Content, tt.want)
			}
		})
	}
}

func TestParseRejectsMalformedOutput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "prose", input: "I will list the files now.", message: "not valid JSON"},
		{name: "empty", input: "", message: "not valid JSON"},
		{name: "prose around json", input: `Sure: {"type":"final","content":"x"}`, message: "not valid JSON"},
		{name: "trailing value", input: `{"type":"final","content":"x"} {"type":"final","content":"y"}`, message: "not valid JSON"},
		{name: "array", input: `[{"type":"final","content":"x"}]`, message: "expected a JSON object"},
		{name: "string", input: `"final"`, message: "expected a JSON object"},
		{name: "number", input: `42`, message: "expected a JSON object"},
		{name: "null", input: `null`, message: "expected a JSON object"},
		{name: "missing type", input: `{"name":"list_files"}`, message: "unknown type"},
		{name: "wrong type", input: `{"type":"answer","content":"x"}`, message: "unknown type"},
		{name: "type case differs", input: `{"type":"Final","content":"x"}`, message: "unknown type"},
		{name: "non-string type", input: `{"type":1}`, message: "unknown type"},
		{name: "tool without name", input: `{"type":"tool","args":{}}`, message: "name"},
		{name: "tool with empty name", input: `{"type":"tool","name":"","args":{}}`, message: "name"},
		{name: "tool args array", input: `{"type":"tool","name":"list_files","args":[]}`, message: "args"},
		{name: "final without content", input: `{"type":"final"}`, message: "content"},
		{name: "final numeric content", input: `{"type":"final","content":3}`, message: "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("expected error, got %#v", action)
			}
			if !errors.Is(err, ErrMalformedOutput) {
				t.Errorf("expected ErrMalformedOutput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q should mention %q", err, tt.message)
			}
		})
	}
}
