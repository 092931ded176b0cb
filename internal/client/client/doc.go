// Package client talks to the SoulTalk auth API over HTTP.
//
// HTTPClient keeps the current token pair. Calls that need a bearer token
// refresh it once, transparently, when the server answers 401, and report
// the rotated pair through the OnTokens hook so callers can persist it.
//
// Server answers map to sentinel errors that callers match with errors.Is:
// ErrUnavailable when the server cannot be reached, ErrUnauthorized on 401,
// ErrForbidden on 403 and ErrRateLimited on 429. The full answer is kept in
// *APIError.
//
// InitDatabase opens the local SQLite state file and applies the embedded
// goose migrations.
package client
