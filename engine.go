package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vhxnguyen/authgate/internal"
	"github.com/vhxnguyen/authgate/internal/rate"
	"github.com/vhxnguyen/authgate/password"
	"github.com/vhxnguyen/authgate/session"
	"github.com/vhxnguyen/authgate/token"
)

// Engine orchestrates credential authentication, token issuance and rotation,
// and session lifecycle. Construct one through [Builder.Build]; all methods
// are safe for concurrent use afterwards.
type Engine struct {
	config       Config
	userProvider UserProvider
	hasher       *password.Hasher
	tokens       *token.Manager
	sessions     *session.Store
	limiter      *rate.Limiter
	metrics      *Metrics
	audit        *auditDispatcher
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// Login verifies credentials and issues a fresh session with a token pair.
// A missing account and a wrong password both return [ErrInvalidCredentials];
// nothing in the result distinguishes them.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.userProvider == nil || e.tokens == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	ip := clientIPFromContext(ctx)

	if email == "" || req.Password == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{"email": email}
				})
				return nil, ErrLoginRateLimited
			}
			return nil, err
		}
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.failLogin(ctx, email, ip)
		}
		return nil, err
	}

	if !e.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, e.failLogin(ctx, email, ip)
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, email, ip); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if err := e.userProvider.UpdateLastLogin(ctx, user.UserID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = now

	result, err := e.issueSession(ctx, user, req.RememberMe)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, result.SessionID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return result, nil
}

func (e *Engine) failLogin(ctx context.Context, email, ip string) error {
	if e.limiter != nil {
		if err := e.limiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			return err
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email}
	})
	return ErrInvalidCredentials
}

// Validate authenticates an access token against its session and resolves
// the current user. Every credential-class failure collapses into
// [ErrUnauthorized]; store and provider outages surface as their own errors.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	if e == nil || e.userProvider == nil || e.tokens == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := e.tokens.Verify(accessToken, token.TypeAccess)
	if err != nil {
		return nil, e.rejectValidate(ctx, "", "")
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, e.rejectValidate(ctx, claims.UserID, claims.SessionID)
	}

	sess, err := e.sessions.FindActive(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, e.rejectValidate(ctx, claims.UserID, claims.SessionID)
		}
		return nil, err
	}

	user, err := e.userProvider.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.rejectValidate(ctx, claims.UserID, claims.SessionID)
		}
		return nil, err
	}

	if err := e.sessions.Touch(ctx, sess.SessionID, time.Now(), clientIPFromContext(ctx)); err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
	}

	e.metricInc(MetricValidateSuccess)
	return &Identity{
		User:    user,
		Session: sessionInfo(sess),
	}, nil
}

func (e *Engine) rejectValidate(ctx context.Context, userID, sessionID string) error {
	e.metricInc(MetricValidateFailure)
	e.emitAudit(ctx, auditEventValidateRejected, false, userID, sessionID, ErrUnauthorized, nil)
	return ErrUnauthorized
}

// Logout soft-revokes one session. Returns true only when this call flipped
// an active row; repeating it is a no-op, not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) (bool, error) {
	if e == nil || e.sessions == nil {
		return false, ErrEngineNotReady
	}

	revoked, err := e.sessions.Deactivate(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if revoked {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutSession, revoked, "", sessionID, nil, nil)
	return revoked, nil
}

// LogoutAll soft-revokes every active session of a user and returns the
// number of sessions revoked.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	count, err := e.sessions.DeactivateAll(ctx, userID)
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	for i := 0; i < count; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"revoked": fmt.Sprintf("%d", count)}
	})
	return count, nil
}

// Sessions lists the user's active sessions, most recently used first.
func (e *Engine) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	active, err := e.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(active))
	for _, s := range active {
		out = append(out, sessionInfo(s))
	}
	return out, nil
}

// issueSession is the shared issuance path behind Register and Login: pick
// the refresh window, mint both tokens against a locally generated session
// ID, and write the session row once with the final token digests. The row
// never exists in a partial state.
func (e *Engine) issueSession(ctx context.Context, user UserRecord, rememberMe bool) (*LoginResult, error) {
	window := e.config.JWT.RefreshTTL
	if rememberMe {
		window = e.config.JWT.RefreshTTLExtended
	}

	sessionID := uuid.NewString()

	accessToken, err := e.tokens.Sign(user.UserID, sessionID, token.TypeAccess, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}
	refreshToken, err := e.tokens.Sign(user.UserID, sessionID, token.TypeRefresh, window)
	if err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	now := time.Now()
	userAgent := userAgentFromContext(ctx)
	device := internal.ParseDevice(userAgent)

	sess := &session.Session{
		SessionID:        sessionID,
		UserID:           user.UserID,
		TokenHash:        internal.HashToken(accessToken),
		RefreshTokenHash: internal.HashToken(refreshToken),
		IPAddress:        clientIPFromContext(ctx),
		UserAgent:        userAgent,
		Device: session.Device{
			Type:    device.Type,
			Browser: device.Browser,
		},
		CreatedAt:  now,
		ExpiresAt:  now.Add(window),
		LastUsedAt: now,
		Active:     true,
	}

	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}
	e.metricInc(MetricSessionCreated)

	expiresIn := int64(e.config.JWT.AccessTTL.Seconds())
	return &LoginResult{
		User: publicUser(user),
		Tokens: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "bearer",
			ExpiresIn:    expiresIn,
			ExpiresAt:    now.Add(e.config.JWT.AccessTTL),
		},
		SessionID: sessionID,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
