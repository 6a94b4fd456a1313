// Package timeutil normalizes the timestamp strings the LLM emits into
// canonical instants with an explicit offset.
package timeutil

import (
	"fmt"
	"time"
)

// naiveLayout matches timestamps that carry no offset at all,
// e.g. "2025-12-04T10:30:00".
const naiveLayout = "2006-01-02T15:04:05"

// ParseError reports a timestamp that could not be normalized.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse normalizes a timestamp string into a time.Time with an explicit
// offset. Accepted forms:
//
//   - 2025-12-04T10:30:00+02:00 (RFC3339 with offset)
//   - 2025-12-04T10:30:00Z      (UTC marker)
//   - 2025-12-04T10:30:00       (no offset)
//
// A timestamp without an offset is taken to already be UTC. This is a
// deliberate simplification: the system prompt instructs the model to
// emit explicit offsets, so the naive form is a fallback, not a
// timezone inference.
func Parse(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	t, err := time.Parse(naiveLayout, value)
	if err != nil {
		return time.Time{}, &ParseError{Value: value, Err: err}
	}
	return t.UTC(), nil
}
