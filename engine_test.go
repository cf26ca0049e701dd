package authgate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string
	nextID  int

	failAll bool
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

var errProviderDown = fmt.Errorf("user store down")

func (p *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAll {
		return UserRecord{}, errProviderDown
	}
	id, ok := p.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return p.users[id], nil
}

func (p *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAll {
		return UserRecord{}, errProviderDown
	}
	user, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (p *mockUserProvider) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAll {
		return UserRecord{}, errProviderDown
	}
	if _, ok := p.byEmail[input.Email]; ok {
		return UserRecord{}, ErrProviderDuplicateEmail
	}

	p.nextID++
	user := UserRecord{
		UserID:       fmt.Sprintf("u%d", p.nextID),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
	}
	p.users[user.UserID] = user
	p.byEmail[user.Email] = user.UserID
	return user, nil
}

func (p *mockUserProvider) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAll {
		return errProviderDown
	}
	user, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLoginAt = at
	p.users[userID] = user
	return nil
}

func (p *mockUserProvider) setVerified(userID string, verified bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.users[userID]
	user.EmailVerified = verified
	p.users[userID] = user
}

func (p *mockUserProvider) deleteUser(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user := p.users[userID]
	delete(p.users, userID)
	delete(p.byEmail, user.Email)
}

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("engine-test-secret")
	// Low cost keeps the suite fast; production default stays at 12.
	cfg.Password.BcryptCost = 4
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *mockUserProvider, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	provider := newMockUserProvider()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, provider, mr
}

func mustRegister(t *testing.T, engine *Engine, email string) *LoginResult {
	t.Helper()

	result, err := engine.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: "initial-password-1",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return result
}

func mustLogin(t *testing.T, engine *Engine, email, password string, rememberMe bool) *LoginResult {
	t.Helper()

	result, err := engine.Login(context.Background(), LoginRequest{
		Email:      email,
		Password:   password,
		RememberMe: rememberMe,
	})
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return result
}
