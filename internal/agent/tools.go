// Package agent exposes the scheduling capabilities as typed tools and runs
// the tool-calling conversation loop against a chat model.
package agent

import (
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"

	"meeting-agent/internal/llm"
)

// ErrUnknownTool is returned for tool names outside the closed set.
var ErrUnknownTool = errors.New("unknown tool")

// ToolKind enumerates the tools offered to the model.
type ToolKind int

const (
	CheckAvailability ToolKind = iota + 1
	BookMeeting
	GetWeekdayDate
	GetNextAvailability
)

// AllTools lists every tool kind in declaration order.
func AllTools() []ToolKind {
	return []ToolKind{CheckAvailability, BookMeeting, GetWeekdayDate, GetNextAvailability}
}

// String returns the wire name the model uses to call the tool.
func (k ToolKind) String() string {
	switch k {
	case CheckAvailability:
		return "checkAvailability"
	case BookMeeting:
		return "bookMeeting"
	case GetWeekdayDate:
		return "getWeekdayDate"
	case GetNextAvailability:
		return "getNextAvailability"
	}
	return "unknown"
}

// ParseToolKind maps a wire name back to its kind.
func ParseToolKind(name string) (ToolKind, error) {
	for _, k := range AllTools() {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownTool, "%q", name)
}

// Description is shown to the model next to the tool name.
func (k ToolKind) Description() string {
	switch k {
	case CheckAvailability:
		return "List the free time windows, per business day, between two instants. " +
			"Use it before proposing or booking a meeting time."
	case BookMeeting:
		return "Book a meeting with a video conference link. The range must be a single weekday " +
			"inside business hours and free in the calendar. Attendees is an optional comma-separated list of e-mails."
	case GetWeekdayDate:
		return "Resolve phrases like 'next friday' or 'the second tuesday from now' into a calendar date. " +
			"Always use it instead of computing dates yourself."
	case GetNextAvailability:
		return "Find the earliest free one hour slot in the coming week, starting from the next business day."
	}
	return ""
}

// InputSchema returns the JSON Schema of the tool input.
func (k ToolKind) InputSchema() map[string]interface{} {
	dateTime := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"type":        "string",
			"description": desc + " ISO 8601, e.g. 2025-01-14T10:00:00-03:00. Without an offset the operating timezone is assumed.",
		}
	}

	switch k {
	case CheckAvailability:
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"startDateTime": dateTime("Start of the period to inspect."),
				"endDateTime":   dateTime("End of the period to inspect."),
			},
			"required":             []string{"startDateTime", "endDateTime"},
			"additionalProperties": false,
		}
	case BookMeeting:
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Meeting title.",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Meeting agenda or context provided by the visitor.",
				},
				"startDateTime": dateTime("Meeting start."),
				"endDateTime":   dateTime("Meeting end."),
				"attendees": map[string]interface{}{
					"type":        "string",
					"description": "Optional comma-separated e-mail addresses of the guests.",
				},
			},
			"required":             []string{"title", "description", "startDateTime", "endDateTime"},
			"additionalProperties": false,
		}
	case GetWeekdayDate:
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"weekday": map[string]interface{}{
					"type":        "string",
					"description": "Weekday name in English or Portuguese, e.g. friday or sexta-feira.",
				},
				"sequence": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"default":     1,
					"description": "1 for the next occurrence, 2 for the one after, and so on.",
				},
			},
			"required":             []string{"weekday"},
			"additionalProperties": false,
		}
	case GetNextAvailability:
		return map[string]interface{}{
			"type":                 "object",
			"properties":           map[string]interface{}{},
			"additionalProperties": false,
		}
	}
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

// Definitions returns the declarations of every tool for the chat model.
func Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(AllTools()))
	for _, k := range AllTools() {
		params, err := json.Marshal(k.InputSchema())
		if err != nil {
			slog.Warn("failed to marshal tool parameters, using empty schema",
				"tool", k.String(),
				"error", err)
			params = []byte(`{"type":"object","properties":{}}`)
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        k.String(),
			Description: k.Description(),
			Parameters:  params,
		})
	}
	return defs
}
