// ReAct (Reason + Act) loop implementation.
//
// Information Hiding:
// - ReAct loop internals hidden
// - LLM communication hidden behind Completer
// - Tool execution coordination hidden
// - Conversation ownership hidden (one message slice per run, never shared)

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsonutil "github.com/richinex/sandboxagent/internal/json"
	"github.com/richinex/sandboxagent/llm"
	"github.com/richinex/sandboxagent/model"
	"github.com/richinex/sandboxagent/tools"
)

// Completer returns one completion for a message sequence.
// *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.ChatMessage) (string, *llm.TokenUsage, error)
}

// Agent executes tasks using the ReAct pattern.
// It holds no per-run state, so one Agent may serve concurrent runs.
type Agent struct {
	config       Config
	llm          Completer
	executor     *tools.Executor
	systemPrompt string
	logger       *slog.Logger
}

// New creates a new agent. The system prompt is rendered once from the
// executor's registry.
func New(config Config, completer Completer, executor *tools.Executor) *Agent {
	return &Agent{
		config:       config,
		llm:          completer,
		executor:     executor,
		systemPrompt: BuildSystemPrompt(config.Preamble, executor.Registry()),
		logger:       slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger used for per-iteration debug records.
func (a *Agent) WithLogger(logger *slog.Logger) *Agent {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Name returns the agent's name.
func (a *Agent) Name() string {
	return a.config.Name
}

// SystemPrompt returns the rendered system prompt.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// Run drives the model until it answers, fails, or exhausts the iteration cap.
//
// Every failure ends the run: a parse error, an unknown tool, bad arguments
// and a tool error are never fed back to the model. The returned Result is
// populated even on error so callers can record what happened.
func (a *Agent) Run(ctx context.Context, req Request) (Result, error) {
	startTime := time.Now()
	result := Result{includeSteps: req.IncludeSteps}
	done := func(err error) (Result, error) {
		result.Metadata.ExecutionTimeMs = uint64(time.Since(startTime).Milliseconds())
		return result, err
	}

	if strings.TrimSpace(req.Input) == "" {
		return done(fmt.Errorf("%w: input must be a non-empty string", ErrInvalidInput))
	}
	maxIterations, err := a.config.iterationCap(req.MaxIterations)
	if err != nil {
		return done(err)
	}

	conversation := []llm.ChatMessage{
		llm.SystemMessage(a.systemPrompt),
		llm.UserMessage(req.Input),
	}

	for iteration := 0; ; {
		// Check context cancellation at top of loop
		if err := ctx.Err(); err != nil {
			return done(fmt.Errorf("run cancelled: %w", err))
		}

		if iteration >= maxIterations {
			return done(fmt.Errorf("%w: no final answer after %d iterations", ErrMaxIterations, maxIterations))
		}

		text, usage, err := a.llm.Complete(ctx, conversation)
		result.Metadata.LLMCalls++
		if usage != nil {
			result.Metadata.TokenUsage.PromptTokens += usage.PromptTokens
			result.Metadata.TokenUsage.CompletionTokens += usage.CompletionTokens
			result.Metadata.TokenUsage.TotalTokens += usage.TotalTokens
		}
		if err != nil {
			return done(fmt.Errorf("%w: %w", ErrModelCall, err))
		}

		// The raw turn is kept even when it fails to parse.
		conversation = append(conversation, llm.AssistantMessage(text))

		action, err := Parse(text)
		if err != nil {
			a.logger.Debug("model output rejected", "agent", a.config.Name, "iteration", iteration, "err", err)
			return done(err)
		}

		switch act := action.(type) {
		case FinalAction:
			result.Steps = append(result.Steps, model.FinalStep(act.Content))
			result.Output = act.Content
			a.logger.Debug("final answer", "agent", a.config.Name, "iteration", iteration)
			return done(nil)

		case ToolAction:
			observation, err := a.executeTool(ctx, act, &result.Metadata)
			if err != nil {
				return done(err)
			}
			result.Steps = append(result.Steps, model.ToolStep(act.Name, act.Args, observation))

			msg, err := observationMessage(act.Name, observation)
			if err != nil {
				return done(err)
			}
			conversation = append(conversation, msg)

			iteration++
			result.Metadata.Iterations = iteration
		}
	}
}

// executeTool runs a tool and records its call metrics.
func (a *Agent) executeTool(ctx context.Context, action ToolAction, meta *Metadata) (string, error) {
	startTime := time.Now()
	output, err := a.executor.Invoke(ctx, action.Name, action.Args)

	a.logger.Debug("tool action",
		"agent", a.config.Name,
		"tool", action.Name,
		"ok", err == nil,
	)

	// Unknown names are not recorded; they would only pollute per-tool metrics.
	if a.executor.Registry().Has(action.Name) {
		inputJSON, marshalErr := json.Marshal(action.Args)
		if marshalErr != nil {
			inputJSON = []byte("{}")
		}
		meta.ToolCalls = append(meta.ToolCalls, model.ToolCall{
			Name:       action.Name,
			InputSize:  len(inputJSON),
			OutputSize: len(output),
			DurationMs: uint64(time.Since(startTime).Milliseconds()),
			Success:    err == nil,
		})
	}

	if err != nil {
		return "", err
	}
	return output, nil
}

type observation struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

func observationMessage(name, result string) (llm.ChatMessage, error) {
	content, err := jsonutil.Compact(observation{Type: "observation", Name: name, Result: result})
	if err != nil {
		return llm.ChatMessage{}, fmt.Errorf("encode observation: %w", err)
	}
	return llm.UserMessage(content), nil
}
