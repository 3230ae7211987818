// Agent configuration types.
//
// Information Hiding:
// - Iteration cap resolution hidden
// - Default values hidden

package agent

import (
	"fmt"
)

const (
	// DefaultMaxIterations is the iteration cap when a request names none.
	DefaultMaxIterations = 6
	// DefaultMaxIterationsLimit bounds what a request may ask for.
	DefaultMaxIterationsLimit = 50
)

// Config holds agent configuration.
type Config struct {
	// Name identifies the agent in logs.
	Name string

	// Preamble opens the system prompt, ahead of the tool list and protocol rules.
	Preamble string

	// MaxIterations is the default cap on tool iterations per run.
	MaxIterations int

	// MaxIterationsLimit is the largest cap a request may set.
	MaxIterationsLimit int
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		Name:               "sandbox-agent",
		Preamble:           "You are a careful assistant that completes tasks using files in a sandbox directory.",
		MaxIterations:      DefaultMaxIterations,
		MaxIterationsLimit: DefaultMaxIterationsLimit,
	}
}

// Validate checks that the caps are usable.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxIterationsLimit < c.MaxIterations {
		return fmt.Errorf("max iterations limit %d is below the default %d", c.MaxIterationsLimit, c.MaxIterations)
	}
	return nil
}

// iterationCap resolves the cap for one request.
func (c Config) iterationCap(requested int) (int, error) {
	switch {
	case requested == 0:
		return c.MaxIterations, nil
	case requested < 0 || requested > c.MaxIterationsLimit:
		return 0, fmt.Errorf("%w: maxIterations must be between 1 and %d, got %d",
			ErrInvalidInput, c.MaxIterationsLimit, requested)
	default:
		return requested, nil
	}
}
