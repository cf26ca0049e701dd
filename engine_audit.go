package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/vhxnguyen/authgate/session"
)

const (
	auditEventRegisterSuccess  = "register_success"
	auditEventRegisterConflict = "register_conflict"
	auditEventRegisterFailure  = "register_failure"
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventValidateRejected = "validate_rejected"
	auditEventRefreshSuccess   = "refresh_success"
	auditEventRefreshRejected  = "refresh_rejected"
	auditEventLogoutSession    = "logout_session"
	auditEventLogoutAll        = "logout_all"
)

type auditErrorCode string

const (
	auditErrUnauthorized       auditErrorCode = "unauthorized"
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrRateLimited        auditErrorCode = "rate_limited"
	auditErrDuplicate          auditErrorCode = "duplicate"
	auditErrUserNotFound       auditErrorCode = "user_not_found"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := errorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func errorCode(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrProviderDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, session.ErrRedisUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
