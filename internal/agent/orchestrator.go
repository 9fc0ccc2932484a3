package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"meeting-agent/internal/llm"
)

// Callback is called during a run for every event.
type Callback func(event string, data string)

// Event constants for callbacks.
const (
	EventToolUse    = "tool_use"
	EventToolResult = "tool_result"
	EventAnswer     = "answer"
)

const (
	DefaultMaxIterations        = 6
	DefaultMaxToolFailures      = 3
	DefaultMaxToolCallsPerReply = 4
)

// OrchestratorConfig bounds the tool-calling loop.
type OrchestratorConfig struct {
	// MaxIterations is the maximum number of model calls that may request tools.
	MaxIterations int
	// MaxToolFailures trips the breaker after that many failed tool calls in a row.
	MaxToolFailures int
	// MaxToolCallsPerReply caps how many calls of a single model reply run.
	// The rest are answered as skipped.
	MaxToolCallsPerReply int
}

// Orchestrator drives one conversation turn: the model picks tools, the
// toolbox runs them one at a time, and the results are fed back until the
// model answers in plain text.
type Orchestrator struct {
	model  llm.ChatModel
	tools  *Toolbox
	config OrchestratorConfig
}

// NewOrchestrator creates an orchestrator. It holds no per-conversation
// state and may serve concurrent requests.
func NewOrchestrator(model llm.ChatModel, tools *Toolbox, config OrchestratorConfig) *Orchestrator {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.MaxToolFailures <= 0 {
		config.MaxToolFailures = DefaultMaxToolFailures
	}
	if config.MaxToolCallsPerReply <= 0 {
		config.MaxToolCallsPerReply = DefaultMaxToolCallsPerReply
	}
	return &Orchestrator{model: model, tools: tools, config: config}
}

// Run answers the last user message of history.
func (o *Orchestrator) Run(ctx context.Context, history []llm.Message) (string, error) {
	return o.RunWithCallback(ctx, history, nil)
}

// RunWithCallback executes the loop with callback support. Tool calls are
// executed sequentially; cancellation of ctx stops the loop before the next
// tool call. When the iteration ceiling or the failure breaker trips, the
// model is asked once more, without tools, for a final answer.
func (o *Orchestrator) RunWithCallback(ctx context.Context, history []llm.Message, callback Callback) (string, error) {
	if callback == nil {
		callback = func(string, string) {}
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: buildSystemPrompt(o.tools.Now(), o.tools.Hours()),
	})
	messages = append(messages, history...)

	defs := Definitions()
	failures := 0

	for iteration := 0; iteration < o.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "conversation abandoned")
		}

		reply, err := o.model.Complete(ctx, messages, defs)
		if err != nil {
			return "", errors.Wrapf(err, "model call failed (iteration %d)", iteration+1)
		}

		if !reply.WantsTools() {
			if strings.TrimSpace(reply.Content) == "" {
				return o.answer(o.tools.Fallback(), callback), nil
			}
			return o.answer(reply.Content, callback), nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})

		for i, tc := range reply.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", errors.Wrap(err, "conversation abandoned")
			}

			// Every call id still needs a tool message, even when not run.
			if failures >= o.config.MaxToolFailures || i >= o.config.MaxToolCallsPerReply {
				slog.Warn("tool call skipped",
					"tool", tc.Name,
					"position", i+1,
					"failures", failures)
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    skippedResult(tc.Name).JSON(),
					ToolCallID: tc.ID,
					Name:       tc.Name,
				})
				continue
			}

			callback(EventToolUse, fmt.Sprintf("%s:%s", tc.Name, tc.Arguments))
			res := o.tools.Execute(ctx, tc.Name, tc.Arguments)
			content := res.JSON()
			callback(EventToolResult, content)

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})

			if res.OK {
				failures = 0
			} else {
				failures++
			}
		}

		if failures >= o.config.MaxToolFailures {
			slog.Warn("tool failure breaker tripped",
				"failures", failures,
				"iteration", iteration+1)
			return o.forceAnswer(ctx, messages, callback)
		}
	}

	slog.Warn("tool iteration ceiling reached", "max_iterations", o.config.MaxIterations)
	return o.forceAnswer(ctx, messages, callback)
}

// forceAnswer asks for a final answer with no tools on offer. A model that
// still requests tools, or answers with nothing, gets the canned fallback.
func (o *Orchestrator) forceAnswer(ctx context.Context, messages []llm.Message, callback Callback) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "conversation abandoned")
	}

	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: forceAnswerNote})
	reply, err := o.model.Complete(ctx, messages, nil)
	if err != nil {
		return "", errors.Wrap(err, "model call failed (final answer)")
	}
	if reply.WantsTools() || strings.TrimSpace(reply.Content) == "" {
		return o.answer(o.tools.Fallback(), callback), nil
	}
	return o.answer(reply.Content, callback), nil
}

func skippedResult(name string) Result {
	return Result{Tool: name, Output: FailureOutput{
		Message: "This call was not executed. Answer with the results you already have.",
		Error:   "skipped",
	}}
}

func (o *Orchestrator) answer(content string, callback Callback) string {
	if content != "" {
		callback(EventAnswer, content)
	}
	return content
}
