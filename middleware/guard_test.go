package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vhxnguyen/authgate"
)

type memProvider struct {
	mu      sync.Mutex
	byEmail map[string]authgate.UserRecord
	byID    map[string]authgate.UserRecord
	nextID  int
}

func newMemProvider() *memProvider {
	return &memProvider{
		byEmail: make(map[string]authgate.UserRecord),
		byID:    make(map[string]authgate.UserRecord),
	}
}

func (p *memProvider) GetUserByEmail(_ context.Context, email string) (authgate.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byEmail[email]
	if !ok {
		return authgate.UserRecord{}, authgate.ErrUserNotFound
	}
	return user, nil
}

func (p *memProvider) GetUserByID(_ context.Context, userID string) (authgate.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return authgate.UserRecord{}, authgate.ErrUserNotFound
	}
	return user, nil
}

func (p *memProvider) CreateUser(_ context.Context, input authgate.CreateUserInput) (authgate.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byEmail[input.Email]; ok {
		return authgate.UserRecord{}, authgate.ErrProviderDuplicateEmail
	}

	p.nextID++
	user := authgate.UserRecord{
		UserID:       fmt.Sprintf("user-%d", p.nextID),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
	}
	p.byEmail[user.Email] = user
	p.byID[user.UserID] = user
	return user, nil
}

func (p *memProvider) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.byID[userID]
	if !ok {
		return authgate.ErrUserNotFound
	}
	user.LastLoginAt = at
	p.byID[userID] = user
	p.byEmail[user.Email] = user
	return nil
}

func (p *memProvider) markVerified(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.byID[userID]
	user.EmailVerified = true
	p.byID[userID] = user
	p.byEmail[user.Email] = user
}

func newTestEngine(t *testing.T) (*authgate.Engine, *memProvider, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authgate.DefaultConfig()
	cfg.JWT.Secret = []byte("guard-test-secret")
	cfg.Password.BcryptCost = 4

	provider := newMemProvider()

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider, mr
}

func registerUser(t *testing.T, engine *authgate.Engine, email string) *authgate.LoginResult {
	t.Helper()

	result, err := engine.Register(context.Background(), authgate.RegisterRequest{
		Email:    email,
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return result
}

func echoIdentity(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(id.User.Email))
	})
}

func TestRequireAcceptsValidToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	result := registerUser(t, engine, "guard@example.com")

	handler := Require(engine)(echoIdentity(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "guard@example.com" {
		t.Fatalf("body = %q", got)
	}
}

func TestRequireRejectsMissingAndMalformedHeaders(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	handler := Require(engine)(echoIdentity(t))

	for _, header := range []string{"", "Bearer ", "Basic abc", "bearer lowercase"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("header %q: missing WWW-Authenticate challenge", header)
		}
	}
}

func TestRequireRejectsRevokedSession(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	result := registerUser(t, engine, "revoked@example.com")

	if _, err := engine.Logout(context.Background(), result.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	handler := Require(engine)(echoIdentity(t))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 after logout", rec.Code)
	}
}

func TestRequireMapsStoreOutageTo503(t *testing.T) {
	engine, _, mr := newTestEngine(t)
	result := registerUser(t, engine, "outage@example.com")

	mr.Close()

	handler := Require(engine)(echoIdentity(t))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 on store outage", rec.Code)
	}
}

func TestRequireVerifiedDistinguishes403From401(t *testing.T) {
	engine, provider, _ := newTestEngine(t)
	result := registerUser(t, engine, "verify@example.com")

	handler := RequireVerified(engine)(echoIdentity(t))

	req := httptest.NewRequest(http.MethodGet, "/verified-only", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unverified: status = %d, want 403", rec.Code)
	}

	provider.markVerified(result.User.UserID)

	req = httptest.NewRequest(http.MethodGet, "/verified-only", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("verified: status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/verified-only", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
}

func TestOptionalPassesThroughWithoutToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	result := registerUser(t, engine, "optional@example.com")

	handler := Optional(engine)(echoIdentity(t))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("anonymous: status = %d body = %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "optional@example.com" {
		t.Fatalf("authenticated: status = %d body = %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("bad token degrades to anonymous: status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.7", "", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain", "203.0.113.7, 10.0.0.2", "", "10.0.0.1:1234", "203.0.113.7"},
		{"real ip fallback", "", "198.51.100.4", "10.0.0.1:1234", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.9:5678", "192.0.2.9"},
		{"remote addr without port", "", "", "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
