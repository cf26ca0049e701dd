package authgate

import "errors"

var (
	// ErrUnauthorized is the uniform validation failure. Bad signatures,
	// expired tokens, revoked sessions, and deleted users all collapse into
	// it so callers cannot tell which check rejected the credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for a missing user or a
	// wrong password, indistinguishably.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the login throttle rejects an attempt.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEmailTaken is the registration conflict for an already-used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrEmailUnverified is the forbidden case for verified-only resources.
	// It is deliberately distinct from ErrUnauthorized: the caller holds a
	// valid session but lacks a verified email.
	ErrEmailUnverified = errors.New("email not verified")
	// ErrUserNotFound is returned by UserProvider lookups for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy is returned when a password fails hashing policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrSessionCreationFailed wraps store failures during token issuance.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrEngineNotReady is returned when a dependency was not wired at Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProviderDuplicateEmail is the sentinel a UserProvider must return
	// from CreateUser when the email is already registered.
	ErrProviderDuplicateEmail = errors.New("provider duplicate email")
)

// IsAuthFailure reports whether err is one of the credential-class failures
// that an HTTP layer should map to 401. Infrastructure errors (Redis or
// provider outages) are never auth failures and must surface as 5xx.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidCredentials)
}
