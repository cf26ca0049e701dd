package authgate

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vhxnguyen/authgate/internal"
	"github.com/vhxnguyen/authgate/token"
)

// Refresh rotates a token pair. The presented refresh token must be the one
// the session currently stores; a token from an earlier rotation is a replay
// and is rejected. Rotation keeps the session's identity and expiry, so the
// new refresh token never outlives the window chosen at login.
//
// Two refreshes racing on the same session both pass the stored-hash check
// and the later write wins; the earlier caller's tokens die on their next
// use. That client re-authenticates, which is the intended outcome for a
// split-brained session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.tokens == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, e.rejectRefresh(ctx, "", "")
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, e.rejectRefresh(ctx, claims.UserID, claims.SessionID)
	}

	sess, err := e.sessions.FindActive(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, e.rejectRefresh(ctx, claims.UserID, claims.SessionID)
		}
		return nil, err
	}

	presented := internal.HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(sess.RefreshTokenHash)) != 1 {
		return nil, e.rejectRefresh(ctx, claims.UserID, claims.SessionID)
	}

	newAccess, err := e.tokens.Sign(claims.UserID, claims.SessionID, token.TypeAccess, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}
	// The replacement refresh token expires with the session, not a fresh
	// full window.
	remaining := time.Until(sess.ExpiresAt)
	if remaining <= 0 {
		return nil, e.rejectRefresh(ctx, claims.UserID, claims.SessionID)
	}
	newRefresh, err := e.tokens.Sign(claims.UserID, claims.SessionID, token.TypeRefresh, remaining)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = e.sessions.RotateTokenHashes(ctx, sess.SessionID,
		internal.HashToken(newAccess), internal.HashToken(newRefresh),
		now, clientIPFromContext(ctx))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, e.rejectRefresh(ctx, claims.UserID, claims.SessionID)
		}
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UserID, claims.SessionID, nil, nil)

	return &TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
		ExpiresAt:    now.Add(e.config.JWT.AccessTTL),
	}, nil
}

func (e *Engine) rejectRefresh(ctx context.Context, userID, sessionID string) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshRejected, false, userID, sessionID, ErrUnauthorized, nil)
	return ErrUnauthorized
}
