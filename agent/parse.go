// Model output parsing.
//
// Information Hiding:
// - Fence stripping and strict decoding hidden
// - Protocol shape checks hidden behind Parse
// - Every protocol violation collapses into ErrMalformedOutput

package agent

import (
	"errors"
	"fmt"

	jsonutil "github.com/richinex/sandboxagent/internal/json"
)

// ErrMalformedOutput is returned when a model turn is not a valid action.
var ErrMalformedOutput = errors.New("invalid model output format")

// Action types as they appear in the "type" field.
const (
	ActionTool  = "tool"
	ActionFinal = "final"
)

// Action is the decoded intent of one model turn.
// It is either a ToolAction or a FinalAction.
type Action interface {
	isAction()
}

// ToolAction asks for one tool to be executed.
type ToolAction struct {
	Name string
	Args map[string]any
}

// FinalAction carries the agent's answer and ends the run.
type FinalAction struct {
	Content string
}

func (ToolAction) isAction()  {}
func (FinalAction) isAction() {}

// Parse decodes raw model text into an Action.
//
// The text may be wrapped in one markdown code fence; anything beyond that
// (prose around the JSON, trailing values, unknown types) is rejected.
// Argument values are passed through untouched for the tool to validate.
func Parse(raw string) (Action, error) {
	text := jsonutil.StripCodeFence(raw)

	var value any
	if err := jsonutil.DecodeStrict(text, &value); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrMalformedOutput, err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedOutput)
	}

	kind, _ := obj["type"].(string)
	switch kind {
	case ActionTool:
		return parseToolAction(obj)
	case ActionFinal:
		return parseFinalAction(obj)
	default:
		return nil, fmt.Errorf("%w: unknown type %s", ErrMalformedOutput, describe(obj["type"]))
	}
}

func parseToolAction(obj map[string]any) (Action, error) {
	name, ok := obj["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: tool action requires a non-empty string name", ErrMalformedOutput)
	}

	args := map[string]any{}
	switch raw := obj["args"].(type) {
	case nil:
	case map[string]any:
		args = raw
	default:
		return nil, fmt.Errorf("%w: tool args must be a JSON object", ErrMalformedOutput)
	}

	return ToolAction{Name: name, Args: args}, nil
}

func parseFinalAction(obj map[string]any) (Action, error) {
	content, ok := obj["content"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: final action requires a string content", ErrMalformedOutput)
	}
	return FinalAction{Content: content}, nil
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "(missing)"
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
