package authgate

import (
	"context"
	"errors"
	"strings"
)

// Register creates an account and immediately issues a session for it, so a
// successful signup behaves exactly like a first login. A duplicate email
// returns [ErrEmailTaken] and leaves no user or session behind.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if e == nil || e.userProvider == nil || e.tokens == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if email == "" {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}
	if req.Password == "" {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrPasswordPolicy, nil)
		return nil, ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrPasswordPolicy, nil)
		return nil, errors.Join(ErrPasswordPolicy, err)
	}

	user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateEmail) {
			e.metricInc(MetricRegisterConflict)
			e.emitAudit(ctx, auditEventRegisterConflict, false, "", "", ErrEmailTaken, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrEmailTaken
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	result, err := e.issueSession(ctx, user, false)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, user.UserID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.UserID, result.SessionID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return result, nil
}
