package agent

import (
	"fmt"

	"github.com/richinex/sandboxagent/tools"
)

const protocolRules = `Respond with exactly one JSON object and nothing else. It must have one of these two shapes:

{"type":"tool","name":"<tool name>","args":{<arguments matching the tool schema>}}
{"type":"final","content":"<your answer to the user>"}

Rules:
- Request one tool per response. The result comes back as {"type":"observation","name":"<tool name>","result":"<text>"}.
- Only use the tools listed above, with arguments that match their schema exactly.
- File paths are relative to the sandbox root. Paths outside the sandbox are rejected.
- A failed tool call ends the task, so check file names with list_files before reading.
- Never wrap the JSON in markdown code fences and never add text before or after it.
- When the task is done, answer with the final shape.`

// BuildSystemPrompt renders the preamble, the tool definitions and the
// response protocol into one system message.
func BuildSystemPrompt(preamble string, registry *tools.Registry) string {
	return fmt.Sprintf("%s\n\nAvailable tools:\n%s\n\n%s", preamble, registry.Description(), protocolRules)
}
