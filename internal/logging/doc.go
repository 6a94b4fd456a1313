// Package logging provides shared slog attribute helpers so log output
// stays consistently keyed across the agent, dispatcher, and servers.
//
// User identifiers are never logged raw; use UserHash/AnonymizeUser.
// Access tokens are never logged at all; SanitizeToken exists for the
// rare debug path that needs to confirm a token was present.
package logging
