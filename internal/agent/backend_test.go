package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calchat/calchat/internal/calendar"
	"github.com/calchat/calchat/internal/instrumentation"
)

// fakeBackend lets each test script the calendar collaborator. Nil
// functions return zero values.
type fakeBackend struct {
	listFn   func(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]calendar.Event, error)
	createFn func(ctx context.Context, accessToken, calendarID string, input calendar.EventInput) (*calendar.Event, error)
	patchFn  func(ctx context.Context, accessToken, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error)
	deleteFn func(ctx context.Context, accessToken, calendarID, eventID string) error
}

func (f *fakeBackend) ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]calendar.Event, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, accessToken, calendarID, timeMin, timeMax, maxResults)
}

func (f *fakeBackend) CreateEvent(ctx context.Context, accessToken, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
	if f.createFn == nil {
		return &calendar.Event{}, nil
	}
	return f.createFn(ctx, accessToken, calendarID, input)
}

func (f *fakeBackend) PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, patch calendar.EventPatch) (*calendar.Event, error) {
	if f.patchFn == nil {
		return &calendar.Event{}, nil
	}
	return f.patchFn(ctx, accessToken, calendarID, eventID, patch)
}

func (f *fakeBackend) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, accessToken, calendarID, eventID)
}

func TestWithCallTimeout_BoundsEachCall(t *testing.T) {
	inner := &fakeBackend{
		listFn: func(ctx context.Context, _, _ string, _, _ time.Time, _ int64) ([]calendar.Event, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok, "wrapped call must carry a deadline")
			assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
			return nil, nil
		},
	}

	backend := WithCallTimeout(inner, 5*time.Second)
	_, err := backend.ListEvents(context.Background(), "tok", "primary", time.Now(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
}

func TestWithCallTimeout_ZeroIsPassthrough(t *testing.T) {
	inner := &fakeBackend{}

	assert.Same(t, inner, WithCallTimeout(inner, 0))
	assert.Same(t, inner, WithCallTimeout(inner, -time.Second))
}

func TestWithInstrumentation_Passthrough(t *testing.T) {
	called := false
	inner := &fakeBackend{
		deleteFn: func(_ context.Context, accessToken, calendarID, eventID string) error {
			called = true
			assert.Equal(t, "tok", accessToken)
			assert.Equal(t, "primary", calendarID)
			assert.Equal(t, "evt-1", eventID)
			return nil
		},
	}

	backend := WithInstrumentation(inner, nil)
	assert.Same(t, inner, backend, "nil metrics leaves the backend unwrapped")

	backend = WithInstrumentation(inner, &instrumentation.Metrics{})
	err := backend.DeleteEvent(context.Background(), "tok", "primary", "evt-1")
	require.NoError(t, err)
	assert.True(t, called)
}
