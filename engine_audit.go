package adfsmfa

import (
	"context"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

const (
	auditEventAttemptStarted    = "attempt.started"
	auditEventAttemptClassified = "attempt.classified"
	auditEventAttemptLockedOut  = "attempt.locked_out"
	auditEventChallengeIssued   = "challenge.issued"
	auditEventVerifySuccess     = "verify.success"
	auditEventVerifyFailure     = "verify.failure"
	auditEventTerminalLock      = "attempt.locked"
	auditEventClaimsIssued      = "attempt.succeeded"
	auditEventEnrollStarted     = "enroll.started"
	auditEventEnrollCompleted   = "enroll.completed"
	auditEventEnrollCancelled   = "enroll.cancelled"
	auditEventEnrollRollback    = "enroll.rollback"
	auditEventCredentialRemoved = "credential.removed"
	auditEventOptionsSaved      = "options.saved"
	auditEventActivation        = "account.activated"
	auditEventPasswordChange    = "password.change"
	auditEventAdminRequest      = "admin.request"
	auditEventKeyRequest        = "admin.key_request"
	auditEventFatal             = "attempt.fatal"
)

// emitAudit queues one event. The metadata closure is only invoked when a
// dispatcher is configured, so callers can build maps lazily.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sc *session.Context,
	cause error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Success:   success,
	}
	if sc != nil {
		event.Identity = sc.Identity
		event.AttemptID = sc.AttemptID
		event.Screen = sc.Screen.String()
		event.Factor = sc.Selected.String()
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
