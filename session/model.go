package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorruptRecord is returned when a stored session blob cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

// Device is a coarse client classification derived from the User-Agent at
// login time. Display metadata only; it carries no security weight.
type Device struct {
	Type    string `json:"device_type,omitempty"`
	Browser string `json:"browser,omitempty"`
}

// Session is one device login. TokenHash and RefreshTokenHash hold the
// SHA-256 hex digests of the currently valid token pair; raw tokens are never
// persisted.
type Session struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	TokenHash        string    `json:"token_hash"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	IPAddress        string    `json:"ip_address,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	Device           Device    `json:"device_info,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	LastUsedAt       time.Time `json:"last_used_at"`
	Active           bool      `json:"active"`
}

// Expired reports whether the session's absolute window has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Encode serializes a session for storage.
func Encode(sess *Session) ([]byte, error) {
	if sess == nil {
		return nil, errors.New("nil session")
	}
	return json.Marshal(sess)
}

// Decode deserializes a stored session blob.
func Decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &sess, nil
}
