package agent

import (
	"github.com/tmc/langchaingo/llms"
)

// ToolName identifies one of the callable calendar operations. The set
// is closed: the dispatcher routes through a lookup table keyed by
// these constants, and a catalog entry without a handler is a bug the
// tests catch.
type ToolName string

const (
	ToolListEvents  ToolName = "list_events"
	ToolCreateEvent ToolName = "create_event"
	ToolUpdateEvent ToolName = "update_event"
	ToolDeleteEvent ToolName = "delete_event"
)

// toolNames lists every catalog entry, in catalog order.
var toolNames = []ToolName{ToolListEvents, ToolCreateEvent, ToolUpdateEvent, ToolDeleteEvent}

const timestampHint = "RFC3339 with timezone, e.g. 2025-12-05T09:00:00+02:00"

func stringParam(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// Catalog returns the tool schema offered to the completion service on
// every first-phase call. It is the agent's entire capability surface:
// the model decides which of these to invoke, so the schema must stay
// in lock-step with the dispatcher's handlers.
func Catalog() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        string(ToolListEvents),
				Description: "Get events from the user's calendar in a specific time range.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"calendar_id": stringParam("Calendar ID. Defaults to 'primary' if omitted."),
						"start":       stringParam("Start of the time range in " + timestampHint),
						"end":         stringParam("End of the time range in " + timestampHint),
					},
					"required":             []string{"start", "end"},
					"additionalProperties": false,
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        string(ToolCreateEvent),
				Description: "Create a new event in the user's calendar.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"calendar_id": stringParam("Calendar ID. Defaults to 'primary' if omitted."),
						"summary":     stringParam("Short title of the event."),
						"description": stringParam("Optional longer description of the event."),
						"start":       stringParam("Event start datetime in " + timestampHint),
						"end":         stringParam("Event end datetime in " + timestampHint),
					},
					"required":             []string{"summary", "start", "end"},
					"additionalProperties": false,
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name: string(ToolUpdateEvent),
				Description: "Update an existing calendar event. Either provide a known " +
					"event_id, or ask the system to locate the event by title and time range.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"calendar_id":     stringParam("Calendar ID. Defaults to 'primary' if omitted."),
						"event_id":        stringParam("ID of the event to update. Use this when you already know the exact event id."),
						"title":           stringParam("Optional title (or part of the title) used to find the event if event_id is not provided. For example: 'meeting with John'."),
						"start":           stringParam("Optional RFC3339 date-time indicating when the existing event roughly starts. Used as a search window together with 'end' if event_id is not provided."),
						"end":             stringParam("Optional RFC3339 date-time indicating when the existing event roughly ends. Used as a search window together with 'start' if event_id is not provided."),
						"new_summary":     stringParam("New title/summary for the event."),
						"new_description": stringParam("New description for the event."),
						"new_start":       stringParam("New start time in " + timestampHint),
						"new_end":         stringParam("New end time in " + timestampHint),
					},
					"required":             []string{},
					"additionalProperties": false,
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name: string(ToolDeleteEvent),
				Description: "Delete an event from the user's calendar. Either provide a known " +
					"event_id, or ask the system to locate the event by title and time range.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"calendar_id": stringParam("Calendar ID. Defaults to 'primary' if omitted."),
						"event_id":    stringParam("ID of the event to delete. Use this when you already know the exact event id."),
						"title":       stringParam("Optional title (or part of the title) used to find the event if event_id is not provided."),
						"start":       stringParam("Optional RFC3339 date-time indicating when the existing event roughly starts. Used as a search window together with 'end' if event_id is not provided."),
						"end":         stringParam("Optional RFC3339 date-time indicating when the existing event roughly ends. Used as a search window together with 'start' if event_id is not provided."),
					},
					"required":             []string{},
					"additionalProperties": false,
				},
			},
		},
	}
}
