// Package llm abstracts the chat model that drives the scheduling assistant.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages that request tools.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolCallID and Name are set on tool result messages.
	ToolCallID string `json:"toolCallId,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolDefinition describes a callable function to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object.
	Parameters json.RawMessage
}

// Reply is the model's answer to a completion request.
type Reply struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// WantsTools reports whether the reply requests at least one tool call.
func (r *Reply) WantsTools() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ChatModel completes a conversation, optionally offering tools.
// Passing no tools forces a plain text answer.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Reply, error)
}
