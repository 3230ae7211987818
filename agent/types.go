// Package agent provides the sandbox ReAct agent.
//
// Contains the request, result and error types of one agent run.
package agent

import (
	"errors"

	"github.com/richinex/sandboxagent/llm"
	"github.com/richinex/sandboxagent/model"
)

var (
	// ErrInvalidInput is returned when the run request fails basic shape checks.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMaxIterations is returned when the loop runs out of iterations.
	ErrMaxIterations = errors.New("max iterations exceeded")
	// ErrModelCall wraps failures of the language model call.
	ErrModelCall = errors.New("model call failed")
)

// Step is an alias for model.Step.
type Step = model.Step

// ToolCall is an alias for model.ToolCall.
type ToolCall = model.ToolCall

// Request is one invocation of the agent.
type Request struct {
	Input        string
	IncludeSteps bool
	// MaxIterations overrides the configured cap when positive.
	MaxIterations int
}

// Metadata describes how a run went.
type Metadata struct {
	Iterations      int
	LLMCalls        int
	ToolCalls       []ToolCall
	TokenUsage      llm.TokenUsage
	ExecutionTimeMs uint64
}

// Result is the outcome of Run.
//
// Steps always holds the full trace so callers can audit failed runs;
// Response decides what the caller actually sees.
type Result struct {
	Output   string
	Steps    []Step
	Metadata Metadata

	includeSteps bool
}

// Response is the caller-facing body of a successful run.
type Response struct {
	Output string `json:"output"`
	Steps  []Step `json:"steps,omitempty"`
}

// Response returns the output, plus the step trace when it was requested.
func (r Result) Response() Response {
	resp := Response{Output: r.Output}
	if r.includeSteps {
		resp.Steps = r.Steps
	}
	return resp
}
