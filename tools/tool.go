// Package tools provides the fixed sandbox tool set for the agent.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Argument decoding internalized per tool
package tools

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownTool is returned when the model names a tool outside the registry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when tool arguments are missing or wrong-typed.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolFailed wraps errors raised while a validated tool runs.
	ErrToolFailed = errors.New("tool execution failed")
)

// Args holds the decoded JSON arguments of one tool action.
type Args = map[string]any

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Definition converts the metadata to the definition rendered for the model.
func (m ToolMetadata) Definition() ToolDefinition {
	properties := make(map[string]any, len(m.Parameters))
	required := make([]string, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return ToolDefinition{
		Name:        m.Name,
		Description: m.Description,
		Schema: map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

// ToolDefinition is the model-facing description of one tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// Tool is the interface that all tools must implement.
//
// Validate is called before Execute and must not touch the filesystem.
// Execute returns the observation text or an error that ends the run.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() ToolMetadata

	// Validate checks arguments before execution.
	Validate(args Args) error

	// Execute runs the tool with validated arguments.
	Execute(ctx context.Context, args Args) (string, error)
}
