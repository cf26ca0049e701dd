// Package session provides Redis-backed persistence for per-device login
// sessions, stored as JSON records with a per-user index set.
//
// # Lifecycle
//
// A session row is written once at login with the SHA-256 digests of the
// freshly issued token pair, soft-deactivated on logout, and lazily removed
// on read after its expiry passes. Redis TTLs are set to the refresh window
// so revoked rows age out on their own.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT interpret JWT tokens or enforce authentication policy — those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authgate or token (no upward imports).
//   - Store raw tokens in [Session] fields; only digests are persisted.
//   - Perform application-level authorization decisions.
package session
