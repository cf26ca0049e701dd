// Package password implements password hashing and verification with bcrypt.
//
// # Output format
//
// Hashes are standard bcrypt strings ($2a$/$2b$ prefix) carrying their own
// cost and salt, so [Hasher.Verify] needs no external parameters.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, reuse history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authgate package.
//   - Log plaintext passwords at runtime.
package password
