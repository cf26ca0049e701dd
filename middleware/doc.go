// Package middleware exposes net/http middleware adapters over
// authgate.Engine validation.
//
// # Guards
//
//   - [Require] — bearer token mandatory, 401 on any credential failure.
//   - [RequireVerified] — Require plus a verified-email check, 403 otherwise.
//   - [Optional] — resolves an identity when present, anonymous otherwise.
//
// Each guard reads the Authorization header, enriches the request context
// with the client IP and User-Agent, calls Engine.Validate, and injects the
// resolved [authgate.Identity] into the request context for handlers to read
// via [IdentityFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself: all decisions are delegated to
// Engine.Validate, and infrastructure failures surface as 503, never 401.
package middleware
