// Package internal contains helper utilities that are intentionally private to
// authgate: token digest helpers and User-Agent device classification.
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
