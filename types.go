package authgate

import (
	"context"
	"time"

	"github.com/vhxnguyen/authgate/session"
)

// UserRecord is the engine's view of a persistent user. The host application
// owns user storage and supplies records through a [UserProvider].
type UserRecord struct {
	UserID        string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
	LastLoginAt   time.Time
}

// CreateUserInput is what the engine hands to the provider at registration.
// The password arrives pre-hashed; providers never see plaintext.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// UserProvider is the persistence interface the host application implements.
//
// GetUserByEmail and GetUserByID return [ErrUserNotFound] for unknown users.
// CreateUser must fail with [ErrProviderDuplicateEmail] when the email is
// already registered, and the failed attempt must leave no user behind.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// RegisterRequest carries the fields for account creation.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginRequest carries credentials plus the remember-me flag that selects the
// extended refresh window.
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
}

// TokenPair is one issued access/refresh pair.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PublicUser is the user shape safe to return to clients. No hash fields.
type PublicUser struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	LastLoginAt   time.Time `json:"last_login_at,omitzero"`
}

// LoginResult is returned by Register and Login: the user, the token pair,
// and the session the pair is bound to.
type LoginResult struct {
	User      PublicUser
	Tokens    TokenPair
	SessionID string
}

// SessionInfo describes one device login for introspection and "manage
// devices" UIs. Token hashes are deliberately absent.
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Identity is the result of a successful Validate: the resolved user and the
// session that authenticated the request.
type Identity struct {
	User    UserRecord
	Session SessionInfo
}

// IsVerified is the predicate middleware.RequireVerified composes over a
// resolved identity. Authorization checks here are plain functions, not
// config switches.
func IsVerified(id *Identity) bool {
	return id != nil && id.User.EmailVerified
}

func publicUser(u UserRecord) PublicUser {
	return PublicUser{
		UserID:        u.UserID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		LastLoginAt:   u.LastLoginAt,
	}
}

func sessionInfo(s *session.Session) SessionInfo {
	return SessionInfo{
		SessionID:  s.SessionID,
		IPAddress:  s.IPAddress,
		UserAgent:  s.UserAgent,
		DeviceType: s.Device.Type,
		Browser:    s.Device.Browser,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		LastUsedAt: s.LastUsedAt,
	}
}
