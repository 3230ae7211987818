// Package llmtest provides deterministic model doubles for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/richinex/sandboxagent/llm"
)

// Response configures one model turn in a scripted sequence.
type Response struct {
	Content string
	Usage   *llm.TokenUsage
	Err     error
}

// Text is shorthand for a successful turn.
func Text(content string) Response {
	return Response{Content: content}
}

// Scripted replays a fixed sequence of completions.
// When Repeat is set the last response is returned forever.
type Scripted struct {
	mu        sync.Mutex
	index     int
	responses []Response
	calls     [][]llm.ChatMessage

	Repeat bool
}

// NewScripted creates a scripted completer.
func NewScripted(responses ...Response) *Scripted {
	cloned := make([]Response, len(responses))
	copy(cloned, responses)
	return &Scripted{responses: cloned}
}

// Forever returns a completer that answers every call with content.
func Forever(content string) *Scripted {
	s := NewScripted(Text(content))
	s.Repeat = true
	return s
}

// Complete returns the next scripted response.
func (s *Scripted) Complete(_ context.Context, messages []llm.ChatMessage) (string, *llm.TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]llm.ChatMessage, len(messages))
	copy(snapshot, messages)
	s.calls = append(s.calls, snapshot)

	if s.index >= len(s.responses) {
		if !s.Repeat || len(s.responses) == 0 {
			return "", nil, fmt.Errorf("script exhausted at call %d", s.index+1)
		}
		s.index = len(s.responses) - 1
	}
	current := s.responses[s.index]
	s.index++
	if current.Err != nil {
		return "", nil, current.Err
	}
	return current.Content, current.Usage, nil
}

// Calls returns how many completions were requested.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Messages returns the message sequence passed to call i (zero based).
func (s *Scripted) Messages(i int) []llm.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.calls) {
		return nil
	}
	return s.calls[i]
}
