package agent

import (
	"context"
	"strings"
	"time"

	"github.com/calchat/calchat/internal/calendar"
)

// Search window bounds for fuzzy event resolution.
const (
	// With only a rough start given, search a window around it: the
	// event may have started a little earlier or run a few hours later
	// than the user remembers.
	windowBeforeStart = 2 * time.Hour
	windowAfterStart  = 6 * time.Hour

	// With no bounds at all, look a week ahead.
	defaultWindow = 7 * 24 * time.Hour

	// resolvePageSize bounds the backend fetch during resolution.
	resolvePageSize = 50
)

// Candidate is the read projection of a fuzzily-matched event. It is
// only ever surfaced back to the conversation for disambiguation,
// never used to silently pick among multiple matches.
type Candidate struct {
	ID      string             `json:"id"`
	Summary string             `json:"summary"`
	Start   calendar.EventTime `json:"start"`
	End     calendar.EventTime `json:"end"`
}

// Resolver locates existing events from a fuzzy description: an
// optional title fragment plus optional rough start/end instants. It
// narrows by time window first, then by conjunctive token match on the
// summary, and returns every remaining candidate. Deciding what to do
// with zero or many candidates is the caller's job.
type Resolver struct {
	backend Backend
	now     func() time.Time
}

// NewResolver creates a resolver over the given backend.
func NewResolver(backend Backend) *Resolver {
	return &Resolver{backend: backend, now: time.Now}
}

// searchWindow computes the backend query window from the optional
// rough bounds.
func (r *Resolver) searchWindow(start, end *time.Time) (time.Time, time.Time) {
	switch {
	case start != nil && end != nil:
		return *start, *end
	case start != nil:
		return start.Add(-windowBeforeStart), start.Add(windowAfterStart)
	default:
		now := r.now().UTC()
		return now, now.Add(defaultWindow)
	}
}

// tokenizeTitle splits a title fragment into lower-cased match tokens.
// Hyphens and underscores count as separators alongside whitespace.
func tokenizeTitle(title string) []string {
	return strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-' || r == '_'
	})
}

// titleMatches reports whether every token appears somewhere in the
// summary, case-insensitively. Conjunctive substring match only; no
// fuzzy edit distance.
func titleMatches(summary string, tokens []string) bool {
	s := strings.ToLower(summary)
	for _, token := range tokens {
		if !strings.Contains(s, token) {
			return false
		}
	}
	return true
}

// FindCandidates resolves a fuzzy description to the events it could
// refer to.
func (r *Resolver) FindCandidates(ctx context.Context, accessToken, calendarID, title string, start, end *time.Time) ([]calendar.Event, error) {
	searchStart, searchEnd := r.searchWindow(start, end)

	events, err := r.backend.ListEvents(ctx, accessToken, calendarID, searchStart, searchEnd, resolvePageSize)
	if err != nil {
		return nil, err
	}

	tokens := tokenizeTitle(title)
	if len(tokens) == 0 {
		return events, nil
	}

	var filtered []calendar.Event
	for _, event := range events {
		if titleMatches(event.Summary, tokens) {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

// toCandidates converts events into the disambiguation projection.
func toCandidates(events []calendar.Event) []Candidate {
	candidates := make([]Candidate, len(events))
	for i, e := range events {
		candidates[i] = Candidate{
			ID:      e.ID,
			Summary: e.Summary,
			Start:   e.Start,
			End:     e.End,
		}
	}
	return candidates
}
