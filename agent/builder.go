// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/richinex/sandboxagent/tools"
)

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder("name") - no stutter.
type Builder struct {
	config    Config
	completer Completer
	executor  *tools.Executor
	logger    *slog.Logger
}

// NewBuilder creates a new agent builder with the given name and default caps.
func NewBuilder(name string) *Builder {
	config := DefaultConfig()
	if name != "" {
		config.Name = name
	}
	return &Builder{config: config}
}

// Preamble sets the opening text of the system prompt.
func (b *Builder) Preamble(preamble string) *Builder {
	b.config.Preamble = preamble
	return b
}

// MaxIterations sets the default iteration cap.
func (b *Builder) MaxIterations(n int) *Builder {
	b.config.MaxIterations = n
	return b
}

// MaxIterationsLimit sets the largest cap a request may ask for.
func (b *Builder) MaxIterationsLimit(n int) *Builder {
	b.config.MaxIterationsLimit = n
	return b
}

// Completer sets the model the agent talks to.
func (b *Builder) Completer(c Completer) *Builder {
	b.completer = c
	return b
}

// Executor sets the tool executor.
func (b *Builder) Executor(e *tools.Executor) *Builder {
	b.executor = e
	return b
}

// Logger sets the agent logger.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Config returns the configuration built so far.
func (b *Builder) Config() Config {
	return b.config
}

// Build validates the configuration and creates the agent.
func (b *Builder) Build() (*Agent, error) {
	if b.completer == nil {
		return nil, errors.New("build agent: completer is required")
	}
	if b.executor == nil {
		return nil, errors.New("build agent: tool executor is required")
	}
	if b.config.Preamble == "" {
		b.config.Preamble = DefaultConfig().Preamble
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}
	return New(b.config, b.completer, b.executor).WithLogger(b.logger), nil
}
