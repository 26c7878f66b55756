package pairAuth

import (
	"context"
	"errors"
)

const (
	auditEventAuthenticated     = "auth_authenticated"
	auditEventRotated           = "auth_rotated"
	auditEventRejected          = "auth_rejected"
	auditEventPairIssued        = "token_pair_issued"
	auditEventRegisterSuccess   = "register_success"
	auditEventRegisterFailure   = "register_failure"
	auditEventRegisterDuplicate = "register_duplicate"
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventLogout            = "logout"
	auditEventProfileUpdated    = "profile_updated"
)

// auditEventTypes lists every event the engine emits; the dispatcher keeps a drop counter
// for each.
var auditEventTypes = []string{
	auditEventAuthenticated,
	auditEventRotated,
	auditEventRejected,
	auditEventPairIssued,
	auditEventRegisterSuccess,
	auditEventRegisterFailure,
	auditEventRegisterDuplicate,
	auditEventLoginSuccess,
	auditEventLoginFailure,
	auditEventLogout,
	auditEventProfileUpdated,
}

// AuditErrorCode is the coarse error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidPrincipal   AuditErrorCode = "invalid_principal"
	auditErrTokenIssue         AuditErrorCode = "token_issue_failed"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	reason string,
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
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Reason:    reason,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitFlowAudit adapts emitAudit to the callback shape used by internal/flows.
func (e *Engine) emitFlowAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	e.emitAudit(ctx, eventType, success, userID, "", err, metadataBuilder)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidPrincipal):
		return auditErrInvalidPrincipal
	case errors.Is(err, ErrTokenIssue):
		return auditErrTokenIssue
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrAccountInvalid):
		return auditErrInvalidInput
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	default:
		return auditErrInternal
	}
}
