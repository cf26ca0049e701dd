// Package authgate provides a session-backed authentication engine with JWT
// access tokens, rotating refresh tokens, and Redis-backed session controls.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, Identity, SessionInfo, MetricsSnapshot).
// User persistence stays with the host application behind [UserProvider];
// the engine owns tokens, sessions, throttling, metrics, and audit.
//
// # Error contract
//
// Credential-class failures collapse into [ErrUnauthorized] (validation and
// refresh) or [ErrInvalidCredentials] (login), so callers cannot probe which
// check rejected them. Infrastructure failures — Redis or provider outages —
// keep their own identity and must never be mapped to 401.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or token hashes in its public API.
//   - Store or log plaintext passwords or issued tokens.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
package authgate
