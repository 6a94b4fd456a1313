package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// maxCachedServices bounds the per-token service cache. Tokens expire
// within an hour, so the cache is flushed wholesale once it fills up.
const maxCachedServices = 64

// Client wraps the Google Calendar API. Unlike a per-account client,
// every call takes the caller's OAuth access token: token issuance and
// refresh happen upstream, and the agent only ever sees a bearer token
// for the current turn.
type Client struct {
	mu       sync.Mutex
	services map[string]*calendar.Service
}

// NewClient creates a Calendar client.
func NewClient() *Client {
	return &Client{
		services: make(map[string]*calendar.Service),
	}
}

// service returns a Calendar service authenticated with the given
// access token, building and caching one per token.
func (c *Client) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if svc, ok := c.services[accessToken]; ok {
		return svc, nil
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	if len(c.services) >= maxCachedServices {
		c.services = make(map[string]*calendar.Service)
	}
	c.services[accessToken] = svc
	return svc, nil
}

// ListEvents lists events in a calendar within a time range, expanded
// to single events and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, accessToken, calendarID string, timeMin, timeMax time.Time, maxResults int64) ([]Event, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}

	events, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]Event, 0, len(events.Items))
	for _, event := range events.Items {
		out = append(out, toEvent(event))
	}
	return out, nil
}

// CreateEvent creates a new calendar event.
func (c *Client) CreateEvent(ctx context.Context, accessToken, calendarID string, input EventInput) (*Event, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	created, err := svc.Events.Insert(calendarID, buildCreate(input)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	event := toEvent(created)
	return &event, nil
}

// PatchEvent applies a sparse update to an existing event. Fields not
// carried by the patch are left untouched.
func (c *Client) PatchEvent(ctx context.Context, accessToken, calendarID, eventID string, patch EventPatch) (*Event, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	updated, err := svc.Events.Patch(calendarID, eventID, buildPatch(patch)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	event := toEvent(updated)
	return &event, nil
}

// DeleteEvent deletes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}
