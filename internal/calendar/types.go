package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventTime mirrors the Google Calendar wire shape for event times.
// The JSON tags match the API so tool results round-trip the exact
// fields the completion service sees.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is the projection of a calendar event the agent works with.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// EventInput carries the fields for creating a new event. The timezone
// label accompanies the explicit-offset instants so the backend stores
// the user's zone alongside them.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// EventPatch is a sparse update; nil fields are left untouched.
type EventPatch struct {
	Summary     *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// IsEmpty reports whether the patch carries no changes at all.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == nil && p.Description == nil && p.Start == nil && p.End == nil
}

// toEvent converts a Google Calendar event to the agent projection.
func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}

	out := Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		HTMLLink:    event.HtmlLink,
	}
	if event.Start != nil {
		out.Start = EventTime{
			DateTime: event.Start.DateTime,
			Date:     event.Start.Date,
			TimeZone: event.Start.TimeZone,
		}
	}
	if event.End != nil {
		out.End = EventTime{
			DateTime: event.End.DateTime,
			Date:     event.End.Date,
			TimeZone: event.End.TimeZone,
		}
	}
	return out
}

// buildCreate translates an EventInput into the Google event payload.
func buildCreate(input EventInput) *calendar.Event {
	return &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
	}
}

// buildPatch translates an EventPatch into a sparse Google event.
// Only fields carried by the patch are set, so Events.Patch leaves
// everything else on the stored event untouched. Carried string
// fields go on ForceSendFields: the wire types marshal with
// omitempty, and an explicit empty summary or description must still
// reach the backend to clear the stored value.
func buildPatch(patch EventPatch) *calendar.Event {
	event := &calendar.Event{}
	if patch.Summary != nil {
		event.Summary = *patch.Summary
		event.ForceSendFields = append(event.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		event.Description = *patch.Description
		event.ForceSendFields = append(event.ForceSendFields, "Description")
	}
	if patch.Start != nil {
		event.Start = &calendar.EventDateTime{
			DateTime: patch.Start.Format(time.RFC3339),
		}
	}
	if patch.End != nil {
		event.End = &calendar.EventDateTime{
			DateTime: patch.End.Format(time.RFC3339),
		}
	}
	return event
}
