// Tool Executor.
//
// Information Hiding:
// - Name-to-handler dispatch hidden
// - Argument validation ordering hidden (always before any side effect)
// - Error classification via sentinel wrapping

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Executor dispatches tool actions against a registry.
// A failed tool is never retried; the error is returned to the caller as-is.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates a new tool executor over the given registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{registry: registry, logger: logger}
}

// Registry returns the underlying registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Invoke validates args and runs the named tool.
// Unknown names fail with ErrUnknownTool and bad arguments with
// ErrInvalidArguments, both before the tool touches the filesystem.
// Errors from the tool itself are wrapped with ErrToolFailed.
func (e *Executor) Invoke(ctx context.Context, name string, args Args) (string, error) {
	tool, exists := e.registry.Get(name)
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if args == nil {
		args = Args{}
	}

	if err := tool.Validate(args); err != nil {
		if !errors.Is(err, ErrInvalidArguments) {
			err = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	output, err := tool.Execute(ctx, args)
	e.logger.Debug("tool executed",
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", err == nil,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToolFailed, err)
	}
	return output, nil
}
