package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calchat/calchat/internal/calendar"
)

func newTestDispatcher(backend Backend) *Dispatcher {
	return NewDispatcher(backend, nil, nil, nil)
}

// dispatch runs one call and decodes the JSON result for assertions.
func dispatch(t *testing.T, d *Dispatcher, name, arguments string) map[string]any {
	t.Helper()

	raw := d.Dispatch(context.Background(), ToolCall{ID: "call-1", Name: name, Arguments: arguments}, "tok", "UTC", "user@example.com")

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &result), "tool results must be valid JSON")
	return result
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "send_email", `{}`)
	assert.Equal(t, "Unknown tool: send_email", result["error"])
}

func TestListEvents_MissingRange(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	for _, args := range []string{`{}`, `{"start":"2025-01-01T09:00:00Z"}`, `{"end":"2025-01-01T10:00:00Z"}`, `not json`} {
		result := dispatch(t, d, "list_events", args)
		assert.Equal(t, "start and end are required", result["error"], "args: %s", args)
	}
}

func TestListEvents_InvalidTimestamp(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "list_events", `{"start":"next tuesday","end":"2025-01-01T10:00:00Z"}`)
	assert.Contains(t, result["error"], "Invalid start format")

	result = dispatch(t, d, "list_events", `{"start":"2025-01-01T09:00:00Z","end":"later"}`)
	assert.Contains(t, result["error"], "Invalid end format")
}

func TestListEvents_Success(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(_ context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]calendar.Event, error) {
			assert.Equal(t, "tok", accessToken)
			assert.Equal(t, "primary", calendarID)
			assert.Equal(t, int64(100), maxResults)
			assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), timeMin.UTC())
			assert.Equal(t, time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC), timeMax.UTC())
			return []calendar.Event{{ID: "1", Summary: "Lunch"}}, nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "list_events", `{"start":"2025-01-01T09:00:00Z","end":"2025-01-01T18:00:00Z"}`)
	events := result["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "Lunch", events[0].(map[string]any)["summary"])
}

func TestListEvents_EmptyIsNotNull(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	raw := d.Dispatch(context.Background(), ToolCall{Name: "list_events", Arguments: `{"start":"2025-01-01T09:00:00Z","end":"2025-01-01T10:00:00Z"}`}, "tok", "UTC", "u")
	assert.JSONEq(t, `{"events":[]}`, raw)
}

func TestListEvents_BackendFailure(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(_ context.Context, _, _ string, _, _ time.Time, _ int64) ([]calendar.Event, error) {
			return nil, errors.New("boom")
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "list_events", `{"start":"2025-01-01T09:00:00Z","end":"2025-01-01T10:00:00Z"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "Failed to list events", result["message"])
}

func TestCreateEvent_MissingFields(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "create_event", `{"summary":"Lunch"}`)
	assert.Equal(t, "summary, start and end are required", result["error"])
}

func TestCreateEvent_PassesTimezoneAndTimes(t *testing.T) {
	var got calendar.EventInput
	backend := &fakeBackend{
		createFn: func(_ context.Context, _, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
			assert.Equal(t, "primary", calendarID)
			got = input
			return &calendar.Event{ID: "new-1", Summary: input.Summary}, nil
		},
	}
	d := NewDispatcher(backend, nil, nil, nil)

	raw := d.Dispatch(context.Background(), ToolCall{
		Name:      "create_event",
		Arguments: `{"summary":"Dentist","description":"checkup","start":"2025-01-01T09:00:00+02:00","end":"2025-01-01T10:00:00+02:00"}`,
	}, "tok", "Europe/Kyiv", "u")

	assert.Equal(t, "Dentist", got.Summary)
	assert.Equal(t, "checkup", got.Description)
	assert.Equal(t, "Europe/Kyiv", got.TimeZone)
	assert.Equal(t, "2025-01-01T09:00:00+02:00", got.Start.Format(time.RFC3339))
	assert.Equal(t, "2025-01-01T10:00:00+02:00", got.End.Format(time.RFC3339))

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &result))
	event := result["event"].(map[string]any)
	assert.Equal(t, "new-1", event["id"])
}

func TestCreateEvent_BackendFailure(t *testing.T) {
	backend := &fakeBackend{
		createFn: func(_ context.Context, _, _ string, _ calendar.EventInput) (*calendar.Event, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "create_event", `{"summary":"Lunch","start":"2025-01-01T09:00:00Z","end":"2025-01-01T10:00:00Z"}`)
	assert.Equal(t, "Failed to create event", result["error"])
}

func TestUpdateEvent_NoFields(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "update_event", `{"event_id":"evt-1"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "No fields to update", result["message"])
}

func TestUpdateEvent_InvalidNewTimes(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "update_event", `{"event_id":"evt-1","new_start":"tomorrow"}`)
	assert.Contains(t, result["error"], "Invalid new_start format")

	result = dispatch(t, d, "update_event", `{"event_id":"evt-1","new_end":"later"}`)
	assert.Contains(t, result["error"], "Invalid new_end format")
}

func TestUpdateEvent_WithEventID(t *testing.T) {
	var gotPatch calendar.EventPatch
	backend := &fakeBackend{
		patchFn: func(_ context.Context, _, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
			assert.Equal(t, "primary", calendarID)
			assert.Equal(t, "evt-1", eventID)
			gotPatch = patch
			return &calendar.Event{ID: eventID, Summary: "Renamed"}, nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "update_event", `{"event_id":"evt-1","new_summary":"Renamed"}`)

	require.NotNil(t, gotPatch.Summary)
	assert.Equal(t, "Renamed", *gotPatch.Summary)
	assert.Nil(t, gotPatch.Description, "untouched fields stay nil")
	assert.Nil(t, gotPatch.Start)
	assert.Nil(t, gotPatch.End)

	assert.Equal(t, true, result["ok"])
	assert.Equal(t, "Updated", result["message"])
	event := result["data"].(map[string]any)["event"].(map[string]any)
	assert.Equal(t, "Renamed", event["summary"])
}

func TestUpdateEvent_EmptySummaryClearsField(t *testing.T) {
	var gotPatch calendar.EventPatch
	backend := &fakeBackend{
		patchFn: func(_ context.Context, _, _, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
			gotPatch = patch
			return &calendar.Event{ID: eventID}, nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "update_event", `{"event_id":"evt-1","new_summary":"","new_description":""}`)

	// Explicitly supplied empty fields clear the stored values; they
	// must survive as non-nil pointers rather than vanish from the patch.
	require.NotNil(t, gotPatch.Summary)
	assert.Empty(t, *gotPatch.Summary)
	require.NotNil(t, gotPatch.Description)
	assert.Empty(t, *gotPatch.Description)

	assert.Equal(t, true, result["ok"])
}

func TestUpdateEvent_ResolvesSingleCandidate(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(_ context.Context, _, _ string, timeMin, timeMax time.Time, _ int64) ([]calendar.Event, error) {
			// Rough start only: the search window stretches around it.
			start := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
			assert.Equal(t, start.Add(-2*time.Hour), timeMin.UTC())
			assert.Equal(t, start.Add(6*time.Hour), timeMax.UTC())
			return []calendar.Event{
				{ID: "evt-9", Summary: "Meeting with John"},
				{ID: "evt-10", Summary: "Lunch"},
			}, nil
		},
		patchFn: func(_ context.Context, _, _, eventID string, _ calendar.EventPatch) (*calendar.Event, error) {
			assert.Equal(t, "evt-9", eventID)
			return &calendar.Event{ID: eventID}, nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "update_event", `{"title":"John Meeting","start":"2025-01-02T09:00:00Z","new_summary":"Moved"}`)
	assert.Equal(t, true, result["ok"])
}

func TestUpdateEvent_AmbiguousCandidates(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(_ context.Context, _, _ string, _, _ time.Time, _ int64) ([]calendar.Event, error) {
			return []calendar.Event{
				{ID: "a", Summary: "Daily standup"},
				{ID: "b", Summary: "Standup with platform team"},
			}, nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "update_event", `{"title":"standup","new_summary":"Standup (moved)"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "Multiple events match, need a more specific request", result["message"])

	candidates := result["data"].(map[string]any)["candidates"].([]any)
	require.Len(t, candidates, 2)
	assert.Equal(t, "a", candidates[0].(map[string]any)["id"])
	assert.Equal(t, "b", candidates[1].(map[string]any)["id"])
}

func TestUpdateEvent_NoCandidate(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "update_event", `{"title":"ghost meeting","new_summary":"x"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "No matching event found", result["message"])
}

func TestUpdateEvent_SearchFailure(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(_ context.Context, _, _ string, _, _ time.Time, _ int64) ([]calendar.Event, error) {
			return nil, errors.New("boom")
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "update_event", `{"title":"standup","new_summary":"x"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "Failed to search for matching events", result["message"])
}

func TestUpdateEvent_InvalidSearchBounds(t *testing.T) {
	d := newTestDispatcher(&fakeBackend{})

	result := dispatch(t, d, "update_event", `{"title":"standup","start":"whenever","new_summary":"x"}`)
	assert.Contains(t, result["error"], "Invalid start format")
}

func TestUpdateEvent_BackendFailure(t *testing.T) {
	backend := &fakeBackend{
		patchFn: func(_ context.Context, _, _, _ string, _ calendar.EventPatch) (*calendar.Event, error) {
			return nil, errors.New("gone")
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "update_event", `{"event_id":"evt-1","new_summary":"x"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "Failed to update event", result["message"])
}

func TestDeleteEvent_WithEventID(t *testing.T) {
	deleted := ""
	backend := &fakeBackend{
		deleteFn: func(_ context.Context, _, calendarID, eventID string) error {
			assert.Equal(t, "team", calendarID)
			deleted = eventID
			return nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "delete_event", `{"calendar_id":"team","event_id":"evt-1"}`)
	assert.Equal(t, "evt-1", deleted)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, "Deleted", result["message"])
	assert.Equal(t, "evt-1", result["data"].(map[string]any)["event_id"])
}

func TestDeleteEvent_ResolvesByTitle(t *testing.T) {
	backend := &fakeBackend{
		listFn: func(_ context.Context, _, _ string, _, _ time.Time, _ int64) ([]calendar.Event, error) {
			return []calendar.Event{{ID: "evt-7", Summary: "Dentist"}}, nil
		},
		deleteFn: func(_ context.Context, _, _, eventID string) error {
			assert.Equal(t, "evt-7", eventID)
			return nil
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "delete_event", `{"title":"dentist"}`)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, "evt-7", result["data"].(map[string]any)["event_id"])
}

func TestDeleteEvent_BackendFailure(t *testing.T) {
	backend := &fakeBackend{
		deleteFn: func(_ context.Context, _, _, _ string) error {
			return errors.New("boom")
		},
	}
	d := newTestDispatcher(backend)

	result := dispatch(t, d, "delete_event", `{"event_id":"evt-1"}`)
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "Failed to delete event", result["message"])
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, "error", resultStatus(toolError{Error: "x"}))
	assert.Equal(t, "error", resultStatus(toolStatus{OK: false}))
	assert.Equal(t, "success", resultStatus(toolStatus{OK: true}))
	assert.Equal(t, "success", resultStatus(listResult{}))
}
