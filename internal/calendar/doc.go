// Package calendar wraps the Google Calendar API for the agent.
//
// The wrapper is deliberately thin: it projects events into the small
// shape the tool handlers return to the LLM and authenticates each
// call with the access token supplied by the caller. Token issuance
// and refresh are not this package's concern.
package calendar
