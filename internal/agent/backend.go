package agent

import (
	"context"
	"time"

	"github.com/calchat/calchat/internal/calendar"
	"github.com/calchat/calchat/internal/instrumentation"
)

// Backend is the calendar collaborator the dispatcher mutates through.
// calendar.Client satisfies it; tests substitute fakes.
type Backend interface {
	ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, accessToken, calendarID string, input calendar.EventInput) (*calendar.Event, error)
	PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
}

// timeoutBackend bounds every backend call with its own timeout. A
// timeout surfaces as an ordinary backend failure; the core never
// retries.
type timeoutBackend struct {
	inner   Backend
	timeout time.Duration
}

// WithCallTimeout wraps a backend so each call carries its own bounded
// timeout. A non-positive timeout returns the backend unchanged.
func WithCallTimeout(backend Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		return backend
	}
	return &timeoutBackend{inner: backend, timeout: timeout}
}

func (b *timeoutBackend) ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.ListEvents(ctx, accessToken, calendarID, timeMin, timeMax, maxResults)
}

func (b *timeoutBackend) CreateEvent(ctx context.Context, accessToken, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.CreateEvent(ctx, accessToken, calendarID, input)
}

func (b *timeoutBackend) PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.PatchEvent(ctx, accessToken, calendarID, eventID, patch)
}

func (b *timeoutBackend) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.inner.DeleteEvent(ctx, accessToken, calendarID, eventID)
}

// instrumentedBackend records a metric and a span for every calendar
// API call.
type instrumentedBackend struct {
	inner   Backend
	metrics *instrumentation.Metrics
}

// WithInstrumentation wraps a backend so each call is recorded in the
// calendar operation metrics and traced.
func WithInstrumentation(backend Backend, metrics *instrumentation.Metrics) Backend {
	if metrics == nil {
		return backend
	}
	return &instrumentedBackend{inner: backend, metrics: metrics}
}

func (b *instrumentedBackend) record(ctx context.Context, operation string, started time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	b.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(started))
}

func (b *instrumentedBackend) ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]calendar.Event, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationList)
	defer span.End()

	started := time.Now()
	events, err := b.inner.ListEvents(ctx, accessToken, calendarID, timeMin, timeMax, maxResults)
	b.record(ctx, instrumentation.OperationList, started, err)
	instrumentation.SetSpanError(span, err)
	return events, err
}

func (b *instrumentedBackend) CreateEvent(ctx context.Context, accessToken, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationCreate)
	defer span.End()

	started := time.Now()
	event, err := b.inner.CreateEvent(ctx, accessToken, calendarID, input)
	b.record(ctx, instrumentation.OperationCreate, started, err)
	instrumentation.SetSpanError(span, err)
	return event, err
}

func (b *instrumentedBackend) PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationPatch)
	defer span.End()

	started := time.Now()
	event, err := b.inner.PatchEvent(ctx, accessToken, calendarID, eventID, patch)
	b.record(ctx, instrumentation.OperationPatch, started, err)
	instrumentation.SetSpanError(span, err)
	return event, err
}

func (b *instrumentedBackend) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.OperationDelete)
	defer span.End()

	started := time.Now()
	err := b.inner.DeleteEvent(ctx, accessToken, calendarID, eventID)
	b.record(ctx, instrumentation.OperationDelete, started, err)
	instrumentation.SetSpanError(span, err)
	return err
}
