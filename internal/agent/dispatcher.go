package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/calchat/calchat/internal/calendar"
	"github.com/calchat/calchat/internal/instrumentation"
	"github.com/calchat/calchat/internal/logging"
	"github.com/calchat/calchat/internal/timeutil"
)

// listPageSize bounds plain list_events queries.
const listPageSize = 100

// ToolCall is one tool invocation emitted by the completion service.
// The id is the correlation token that must be echoed back on the
// result so the second-phase call can match request and response.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// toolError is the result shape for validation failures and unknown
// tools. The model reads it and retries with corrected arguments.
type toolError struct {
	Error string `json:"error"`
}

// toolStatus is the result shape for resolution and mutation outcomes.
type toolStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type listResult struct {
	Events []calendar.Event `json:"events"`
}

type createResult struct {
	Event *calendar.Event `json:"event"`
}

type updatedData struct {
	Event *calendar.Event `json:"event"`
}

type deletedData struct {
	EventID string `json:"event_id"`
}

type candidateData struct {
	Candidates []Candidate `json:"candidates"`
}

// handlerFunc executes one validated-and-routed tool call. Handlers
// return JSON-serializable results and never fail the turn for
// business-rule violations.
type handlerFunc func(d *Dispatcher, ctx context.Context, args map[string]any, accessToken, timezone string) any

// handlers routes each catalog tool to its handler. Adding a catalog
// entry without extending this table is caught by tests.
var handlers = map[ToolName]handlerFunc{
	ToolListEvents:  (*Dispatcher).handleListEvents,
	ToolCreateEvent: (*Dispatcher).handleCreateEvent,
	ToolUpdateEvent: (*Dispatcher).handleUpdateEvent,
	ToolDeleteEvent: (*Dispatcher).handleDeleteEvent,
}

// Dispatcher validates tool-call arguments and routes them to the
// calendar backend, consulting the resolver when a mutation arrives
// without an exact event id.
type Dispatcher struct {
	backend  Backend
	resolver *Resolver
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
}

// NewDispatcher creates a dispatcher over the given backend.
func NewDispatcher(backend Backend, logger *slog.Logger, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if audit == nil {
		audit = instrumentation.NewAuditLogger(logger)
	}
	return &Dispatcher{
		backend:  backend,
		resolver: NewResolver(backend),
		logger:   logger,
		metrics:  metrics,
		audit:    audit,
	}
}

// Dispatch executes one tool call and returns the JSON text of its
// result, which becomes the content of the corresponding tool-role
// message.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall, accessToken, timezone, user string) string {
	started := time.Now()
	args := parseArgs(call.Arguments)

	ctx, span := instrumentation.StartToolSpan(ctx, call.Name)
	defer span.End()

	invocation := instrumentation.NewToolInvocation(call.Name).
		WithUser(user).
		WithCalendar(calendarIDArg(args)).
		WithEvent(stringArg(args, "event_id")).
		WithSpanContext(ctx)

	var result any
	if handler, ok := handlers[ToolName(call.Name)]; ok {
		result = handler(d, ctx, args, accessToken, timezone)
	} else {
		result = toolError{Error: fmt.Sprintf("Unknown tool: %s", call.Name)}
	}

	status := resultStatus(result)
	if status == logging.StatusSuccess {
		instrumentation.SetSpanSuccess(span)
	} else {
		instrumentation.SetSpanError(span, fmt.Errorf("tool %s returned %s", call.Name, status))
	}

	invocation.Complete(status == logging.StatusSuccess, nil)
	d.audit.LogToolInvocation(invocation)
	d.metrics.RecordToolInvocationForUser(ctx, call.Name, status, user, time.Since(started))
	d.logger.Debug("tool dispatched",
		logging.Tool(call.Name),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, time.Since(started)),
	)

	payload, err := json.Marshal(result)
	if err != nil {
		// Result shapes are plain structs; this cannot happen in practice.
		return `{"error":"internal error"}`
	}
	return string(payload)
}

// resultStatus classifies a handler result for logging and metrics.
func resultStatus(result any) string {
	switch v := result.(type) {
	case toolError:
		return logging.StatusError
	case toolStatus:
		if !v.OK {
			return logging.StatusError
		}
	}
	return logging.StatusSuccess
}

func (d *Dispatcher) handleListEvents(ctx context.Context, args map[string]any, accessToken, _ string) any {
	start := stringArg(args, "start")
	end := stringArg(args, "end")
	if start == "" || end == "" {
		return toolError{Error: "start and end are required"}
	}

	startTime, err := timeutil.Parse(start)
	if err != nil {
		return toolError{Error: fmt.Sprintf("Invalid start format: %v", err)}
	}
	endTime, err := timeutil.Parse(end)
	if err != nil {
		return toolError{Error: fmt.Sprintf("Invalid end format: %v", err)}
	}

	events, err := d.backend.ListEvents(ctx, accessToken, calendarIDArg(args), startTime, endTime, listPageSize)
	if err != nil {
		return toolStatus{OK: false, Message: "Failed to list events"}
	}
	if events == nil {
		events = []calendar.Event{}
	}
	return listResult{Events: events}
}

func (d *Dispatcher) handleCreateEvent(ctx context.Context, args map[string]any, accessToken, timezone string) any {
	summary := stringArg(args, "summary")
	start := stringArg(args, "start")
	end := stringArg(args, "end")
	if summary == "" || start == "" || end == "" {
		return toolError{Error: "summary, start and end are required"}
	}

	startTime, err := timeutil.Parse(start)
	if err != nil {
		return toolError{Error: fmt.Sprintf("Invalid start format: %v", err)}
	}
	endTime, err := timeutil.Parse(end)
	if err != nil {
		return toolError{Error: fmt.Sprintf("Invalid end format: %v", err)}
	}

	input := calendar.EventInput{
		Summary:     summary,
		Description: stringArg(args, "description"),
		Start:       startTime,
		End:         endTime,
		TimeZone:    timezone,
	}

	created, err := d.backend.CreateEvent(ctx, accessToken, calendarIDArg(args), input)
	if err != nil {
		return toolError{Error: "Failed to create event"}
	}
	return createResult{Event: created}
}

func (d *Dispatcher) handleUpdateEvent(ctx context.Context, args map[string]any, accessToken, _ string) any {
	var patch calendar.EventPatch
	if hasArg(args, "new_summary") {
		summary := stringArg(args, "new_summary")
		patch.Summary = &summary
	}
	if hasArg(args, "new_description") {
		description := stringArg(args, "new_description")
		patch.Description = &description
	}
	if hasArg(args, "new_start") {
		start, err := timeutil.Parse(stringArg(args, "new_start"))
		if err != nil {
			return toolError{Error: fmt.Sprintf("Invalid new_start format: %v", err)}
		}
		patch.Start = &start
	}
	if hasArg(args, "new_end") {
		end, err := timeutil.Parse(stringArg(args, "new_end"))
		if err != nil {
			return toolError{Error: fmt.Sprintf("Invalid new_end format: %v", err)}
		}
		patch.End = &end
	}

	// Nothing to apply: reject before touching the backend.
	if patch.IsEmpty() {
		return toolStatus{OK: false, Message: "No fields to update"}
	}

	calendarID := calendarIDArg(args)
	eventID := stringArg(args, "event_id")
	if eventID == "" {
		resolved, failure := d.resolveEvent(ctx, args, accessToken, calendarID)
		if failure != nil {
			return failure
		}
		eventID = resolved
	}

	updated, err := d.backend.PatchEvent(ctx, accessToken, calendarID, eventID, patch)
	if err != nil {
		return toolStatus{OK: false, Message: "Failed to update event"}
	}
	return toolStatus{OK: true, Message: "Updated", Data: updatedData{Event: updated}}
}

func (d *Dispatcher) handleDeleteEvent(ctx context.Context, args map[string]any, accessToken, _ string) any {
	calendarID := calendarIDArg(args)

	eventID := stringArg(args, "event_id")
	if eventID == "" {
		resolved, failure := d.resolveEvent(ctx, args, accessToken, calendarID)
		if failure != nil {
			return failure
		}
		eventID = resolved
	}

	if err := d.backend.DeleteEvent(ctx, accessToken, calendarID, eventID); err != nil {
		return toolStatus{OK: false, Message: "Failed to delete event"}
	}
	return toolStatus{OK: true, Message: "Deleted", Data: deletedData{EventID: eventID}}
}

// resolveEvent turns a fuzzy description into exactly one event id, or
// a structured failure result. Zero or multiple candidates are always
// surfaced back to the conversation; the dispatcher never picks one.
func (d *Dispatcher) resolveEvent(ctx context.Context, args map[string]any, accessToken, calendarID string) (string, any) {
	var start, end *time.Time
	if s := stringArg(args, "start"); s != "" {
		t, err := timeutil.Parse(s)
		if err != nil {
			return "", toolError{Error: fmt.Sprintf("Invalid start format: %v", err)}
		}
		start = &t
	}
	if s := stringArg(args, "end"); s != "" {
		t, err := timeutil.Parse(s)
		if err != nil {
			return "", toolError{Error: fmt.Sprintf("Invalid end format: %v", err)}
		}
		end = &t
	}

	events, err := d.resolver.FindCandidates(ctx, accessToken, calendarID, stringArg(args, "title"), start, end)
	if err != nil {
		return "", toolStatus{OK: false, Message: "Failed to search for matching events"}
	}

	switch len(events) {
	case 0:
		return "", toolStatus{OK: false, Message: "No matching event found"}
	case 1:
		return events[0].ID, nil
	default:
		return "", toolStatus{
			OK:      false,
			Message: "Multiple events match, need a more specific request",
			Data:    candidateData{Candidates: toCandidates(events)},
		}
	}
}
