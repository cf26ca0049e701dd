// Package token issues and verifies the JWT access and refresh tokens bound to
// a session, using HMAC-SHA-256 with a shared server secret.
//
// Verification is deliberately a single-sentinel API: every failure mode
// (bad signature, expired, wrong type, garbage input) surfaces as
// [ErrInvalid] so callers cannot leak why a token was rejected.
package token
