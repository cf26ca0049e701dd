package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens via the "type" claim.
type Type string

const (
	// TypeAccess marks short-lived tokens accepted by Validate.
	TypeAccess Type = "access"
	// TypeRefresh marks long-lived tokens accepted by Refresh.
	TypeRefresh Type = "refresh"
)

// ErrInvalid is the single verification failure sentinel. Signature errors,
// expiry, type mismatches, and malformed input all collapse into it.
var ErrInvalid = errors.New("invalid token")

// Config holds signing parameters.
type Config struct {
	Secret    []byte
	Algorithm string // "HS256" (default)
	Issuer    string
}

// Manager is a stateless codec for session-bound JWTs. It never touches
// storage; revocation checks belong to the Engine.
type Manager struct {
	config Config
}

// Claims is the claim set carried by both token types.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	TokenType Type   `json:"type"`
	jwt.RegisteredClaims
}

// NewManager validates the config and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "HS256"
	}
	if cfg.Algorithm != "HS256" {
		return nil, errors.New("unsupported signing algorithm")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a secret")
	}

	return &Manager{config: cfg}, nil
}

// Sign creates a token of the given type for the user/session pair, expiring
// ttl from now.
func (m *Manager) Sign(userID, sessionID string, typ Type, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be > 0")
	}

	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Verify checks signature, expiry, and the "type" claim, returning the parsed
// claims on success. Any failure returns [ErrInvalid].
func (m *Manager) Verify(tokenStr string, expected Type) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != expected {
		return nil, ErrInvalid
	}

	return claims, nil
}
