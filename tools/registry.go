// Tool registry.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Registration happens once at construction; the set is read-only afterwards
// - Prompt rendering of tool definitions abstracted

package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/richinex/sandboxagent/sandbox"
)

// Registry maps tool names to handlers.
// It is built once and never mutated, so concurrent runs read it without locking.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry from the given tools.
// Returns error if two tools share a name.
func NewRegistry(toolList ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool, len(toolList)),
		order: make([]string, 0, len(toolList)),
	}
	for _, tool := range toolList {
		name := tool.Metadata().Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool '%s' already registered", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Definitions returns tool definitions in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Metadata().Definition())
	}
	return defs
}

// Description returns a formatted description of all tools for LLM prompts.
func (r *Registry) Description() string {
	var descriptions []string
	for _, def := range r.Definitions() {
		schema, err := json.Marshal(def.Schema)
		if err != nil {
			schema = []byte("{}")
		}
		descriptions = append(descriptions, fmt.Sprintf(
			"- %s: %s\n  args schema: %s",
			def.Name, def.Description, schema))
	}
	return strings.Join(descriptions, "\n")
}

// WithDefaults creates the registry of sandbox file tools:
// list_files, read_file and write_file.
func WithDefaults(sb sandbox.Sandbox) (*Registry, error) {
	registry, err := NewRegistry(
		NewListFilesTool(sb),
		NewReadFileTool(sb),
		NewWriteFileTool(sb),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register default tools: %w", err)
	}
	return registry, nil
}
