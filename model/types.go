// Package model provides domain types shared across packages.
package model

import "encoding/json"

// StepType discriminates the two kinds of trace entries.
type StepType string

const (
	// StepTool records one executed tool action.
	StepTool StepType = "tool"
	// StepFinal records the terminal answer.
	StepFinal StepType = "final"
)

// Step is one entry of the step trace, in loop execution order.
// Tool steps carry Name, Args and Result; final steps carry Content.
type Step struct {
	Type    StepType       `json:"type"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  string         `json:"result,omitempty"`
	Content string         `json:"content,omitempty"`
}

// ToolStep creates a trace entry for an executed tool.
func ToolStep(name string, args map[string]any, result string) Step {
	if args == nil {
		args = map[string]any{}
	}
	return Step{Type: StepTool, Name: name, Args: args, Result: result}
}

// FinalStep creates the terminal trace entry.
func FinalStep(content string) Step {
	return Step{Type: StepFinal, Content: content}
}

// MarshalJSON emits exactly the fields of the step's variant, so empty
// args, results and final contents are still present on the wire.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Type == StepFinal {
		return json.Marshal(struct {
			Type    StepType `json:"type"`
			Content string   `json:"content"`
		}{Type: s.Type, Content: s.Content})
	}

	args := s.Args
	if args == nil {
		args = map[string]any{}
	}
	return json.Marshal(struct {
		Type   StepType       `json:"type"`
		Name   string         `json:"name"`
		Args   map[string]any `json:"args"`
		Result string         `json:"result"`
	}{Type: s.Type, Name: s.Name, Args: args, Result: s.Result})
}

// ToolCall contains metrics about a tool invocation.
// Used for tracking and analytics of one run.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
