package agent

import (
	"encoding/json"
)

// parseArgs decodes a tool call's raw argument blob. A malformed blob
// yields an empty map rather than a failure: the handler then reports
// the missing required fields as an ordinary tool result the model can
// react to. This is a documented leniency, not an accidental swallow.
func parseArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// stringArg returns the string value for key, or "" when absent or not
// a string.
func stringArg(args map[string]any, key string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return ""
}

// hasArg reports whether key is present at all. Presence matters for
// the update patch: an explicitly supplied empty new_summary clears the
// title, while an absent one leaves it untouched.
func hasArg(args map[string]any, key string) bool {
	_, ok := args[key]
	return ok
}

// calendarIDArg returns the calendar id argument, defaulting to the
// user's primary calendar.
func calendarIDArg(args map[string]any) string {
	if id := stringArg(args, "calendar_id"); id != "" {
		return id
	}
	return "primary"
}
