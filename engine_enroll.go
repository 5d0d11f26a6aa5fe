package adfsmfa

import (
	"context"

	"github.com/neos-sdi/adfsmfa-sub013/internal"
	"github.com/neos-sdi/adfsmfa-sub013/session"
)

const (
	actionAdd    = "add"
	actionDelete = "delete"
	actionDone   = "done"
	actionRetry  = "retry"
)

const (
	msgEnrolled       = "your authentication method has been enrolled"
	msgWrongEnrolCode = "the code did not match, start over"
	msgBadEmail       = "enter a valid email address"
	msgBadPhone       = "enter a valid phone number"
	msgBadPIN         = "the PIN does not meet the length requirements"
	msgPINMismatch    = "the PIN and its confirmation do not match"
	msgLastCredential = "the last credential of your only required method cannot be removed"
)

var wizardScreens = map[session.Factor]session.Screen{
	session.FactorOTP:       session.ScreenEnrollOTP,
	session.FactorEmail:     session.ScreenEnrollEmail,
	session.FactorPhone:     session.ScreenEnrollPhone,
	session.FactorBiometric: session.ScreenEnrollBiometrics,
	session.FactorPIN:       session.ScreenEnrollPin,
}

func wizardScreen(f session.Factor) (session.Screen, bool) {
	s, ok := wizardScreens[f]
	return s, ok
}

func wizardFactor(s session.Screen) session.Factor {
	for f, ws := range wizardScreens {
		if ws == s {
			return f
		}
	}
	return session.FactorNone
}

// launchWizard enters the enrollment wizard for screen under the given
// outer flow, clearing any state left by a previous wizard.
func (e *Engine) launchWizard(sc *session.Context, screen session.Screen, flow session.Flow) {
	sc.ResetWizard()
	sc.Flow = flow
	sc.Screen = screen
	sc.Step = session.StepCapture
	sc.Message = ""
	e.metricInc(MetricEnrollmentStarted)
}

// enrolled reports whether the user already has working enrollment data for
// factor. The cloud relay needs nothing local and always counts as enrolled.
func (e *Engine) enrolled(ctx context.Context, user *RegisteredUser, f session.Factor) bool {
	if user == nil {
		return false
	}
	switch f {
	case session.FactorOTP:
		return user.KeyHandle != ""
	case session.FactorEmail:
		return user.MailAddress != ""
	case session.FactorPhone:
		return user.PhoneNumber != ""
	case session.FactorPIN:
		return user.PINHash != ""
	case session.FactorBiometric:
		backend := e.registry.backend(session.FactorBiometric)
		if backend == nil {
			return false
		}
		creds, err := backend.ListCredentials(ctx, user.Identity)
		return err == nil && len(creds) > 0
	case session.FactorAzure:
		return true
	default:
		return false
	}
}

// forcedEnrollment decides whether a just-verified attempt must detour into
// enrolling the user's preferred-but-unenrolled first-choice factor.
func (e *Engine) forcedEnrollment(ctx context.Context, sc *session.Context, user *RegisteredUser) (session.Screen, bool) {
	fc := sc.FirstChoice
	if user == nil || !fc.Valid() || fc == sc.Selected {
		return session.ScreenNone, false
	}
	c, ok := e.registry.get(fc)
	if !ok || !c.cfg.ForceEnrollment || !c.cfg.WizardEnabled {
		return session.ScreenNone, false
	}
	if e.enrolled(ctx, user, fc) {
		return session.ScreenNone, false
	}
	screen, ok := wizardScreen(fc)
	if !ok {
		return session.ScreenNone, false
	}
	return screen, true
}

func (e *Engine) handleEnrollment(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	factor := wizardFactor(sc.Screen)
	if !factor.Valid() {
		return failWith(ErrContextInvalid)
	}
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}

	p := parseWizard(fields)
	if p.Action == actionCancel {
		return e.cancelWizard(ctx, sc, user, factor)
	}

	switch sc.Step {
	case session.StepNone, session.StepCapture:
		return e.wizardCapture(ctx, sc, user, factor, p)
	case session.StepPending:
		return e.wizardPending(ctx, sc, user, factor, p)
	case session.StepVerify:
		return e.wizardVerify(ctx, sc, user, factor, p)
	case session.StepFailure:
		// Acknowledged; back to capture.
		sc.Step = session.StepCapture
		return cont()
	case session.StepSuccess:
		return e.completeWizard(ctx, sc, user, factor)
	case session.StepManage:
		return e.wizardManage(ctx, sc, user, p)
	default:
		return failWith(ErrContextInvalid)
	}
}

// wizardCapture collects and syntax-validates the factor-specific
// parameter. Validation failures re-present the same step and never touch
// the login retry counter.
func (e *Engine) wizardCapture(ctx context.Context, sc *session.Context, user *RegisteredUser, factor session.Factor, p wizardPayload) outcome {
	backend := e.registry.backend(factor)

	switch factor {
	case session.FactorOTP:
		if backend == nil {
			return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
		}
		// The backend generates fresh secret material into CandidateKey and
		// returns the provisioning payload; nothing is persisted until the
		// wizard completes.
		ch, err := backend.IssueChallenge(ctx, sc, user)
		if err != nil || ch.Code != ResultSuccess {
			return e.collaboratorFailure(ctx, sc, err)
		}
		sc.PendingPayload = ch.Payload
		sc.Step = session.StepPending
		sc.Message = ""
		return cont()

	case session.FactorEmail:
		if !internal.ValidEmail(p.Value) {
			sc.Message = msgBadEmail
			return cont()
		}
		sc.CandidateEmail = p.Value
		sc.Step = session.StepPending
		sc.Message = ""
		return cont()

	case session.FactorPhone:
		if !internal.ValidPhone(p.Value) {
			sc.Message = msgBadPhone
			return cont()
		}
		sc.CandidatePhone = p.Value
		sc.Step = session.StepPending
		sc.Message = ""
		return cont()

	case session.FactorPIN:
		pc := e.config.PIN
		if !internal.ValidPIN(p.Value, pc.MinLength, pc.MaxLength) {
			sc.Message = msgBadPIN
			return cont()
		}
		if p.Value != p.Confirm {
			sc.Message = msgPINMismatch
			return cont()
		}
		sc.CandidatePIN = p.Value
		sc.Step = session.StepSuccess
		sc.Message = ""
		return cont()

	case session.FactorBiometric:
		if backend == nil {
			return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
		}
		// Start the registration ceremony; the client completes it and
		// auto-submits the attestation to the pending step.
		ch, err := backend.IssueChallenge(ctx, sc, user)
		if err != nil || ch.Code != ResultSuccess {
			return e.collaboratorFailure(ctx, sc, err)
		}
		sc.PendingPayload = ch.Payload
		sc.Step = session.StepPending
		sc.Message = ""
		return cont()

	default:
		return failWith(ErrContextInvalid)
	}
}

// wizardPending fires the out-of-band send (email/phone), advances the OTP
// wizard to code verification, or synchronously verifies a biometric
// attestation.
func (e *Engine) wizardPending(ctx context.Context, sc *session.Context, user *RegisteredUser, factor session.Factor, p wizardPayload) outcome {
	backend := e.registry.backend(factor)
	if backend == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}

	switch factor {
	case session.FactorOTP:
		sc.Step = session.StepVerify
		return cont()

	case session.FactorEmail, session.FactorPhone:
		ch, err := backend.IssueChallenge(ctx, sc, user)
		if err != nil || ch.Code == ResultTransient {
			return e.collaboratorFailure(ctx, sc, err)
		}
		if ch.Code != ResultSuccess && ch.Code != ResultPending {
			return e.wizardFailure(ctx, sc, user, msgTransient)
		}
		sc.PendingPayload = ch.Payload
		sc.Step = session.StepVerify
		sc.Message = ""
		return cont()

	case session.FactorBiometric:
		// The backend verifies the attestation synchronously and stores
		// the credential itself on success.
		if p.Response == "" {
			return e.wizardFailure(ctx, sc, user, msgWrongEnrolCode)
		}
		code, err := backend.VerifyResponse(ctx, sc, user, p.Response)
		if err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		switch code {
		case ResultSuccess:
			sc.Step = session.StepSuccess
			sc.Message = ""
			return cont()
		case ResultTransient:
			sc.Message = msgTransient
			return cont()
		default:
			return e.wizardFailure(ctx, sc, user, msgWrongEnrolCode)
		}

	default:
		return failWith(ErrContextInvalid)
	}
}

// wizardVerify checks the confirmation code against the backend. Failure
// rolls the candidates back to the persisted values and re-presents.
func (e *Engine) wizardVerify(ctx context.Context, sc *session.Context, user *RegisteredUser, factor session.Factor, p wizardPayload) outcome {
	backend := e.registry.backend(factor)
	if backend == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}
	if p.Code == "" {
		return e.wizardFailure(ctx, sc, user, msgWrongEnrolCode)
	}
	code, err := backend.VerifyResponse(ctx, sc, user, p.Code)
	if err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}
	switch code {
	case ResultSuccess:
		sc.Step = session.StepSuccess
		sc.Message = ""
		return cont()
	case ResultTransient:
		sc.Message = msgTransient
		return cont()
	default:
		return e.wizardFailure(ctx, sc, user, msgWrongEnrolCode)
	}
}

// wizardFailure re-presents the failure step with the candidates restored
// from the last persisted record. The login retry counter is untouched;
// enrollment retries are unlimited.
func (e *Engine) wizardFailure(ctx context.Context, sc *session.Context, user *RegisteredUser, msg string) outcome {
	e.rollbackCandidates(sc, user)
	sc.Step = session.StepFailure
	sc.Message = msg
	e.metricInc(MetricEnrollmentRollback)
	e.emitAudit(ctx, auditEventEnrollRollback, false, sc, nil, nil)
	return cont()
}

func (e *Engine) rollbackCandidates(sc *session.Context, user *RegisteredUser) {
	sc.PendingPayload = ""
	sc.CandidateKey = ""
	sc.CandidatePIN = ""
	if user != nil {
		sc.CandidateEmail = user.MailAddress
		sc.CandidatePhone = user.PhoneNumber
	} else {
		sc.CandidateEmail = ""
		sc.CandidatePhone = ""
	}
}

// completeWizard persists the enrollment and returns control to the outer
// flow. Persistence happens here and nowhere earlier, so an abandoned or
// cancelled wizard never leaves a partial write.
func (e *Engine) completeWizard(ctx context.Context, sc *session.Context, user *RegisteredUser, factor session.Factor) outcome {
	if user == nil {
		user = &RegisteredUser{Identity: sc.Identity, PreferredMethod: factor}
	}
	switch factor {
	case session.FactorOTP:
		user.KeyHandle = sc.CandidateKey
	case session.FactorEmail:
		user.MailAddress = sc.CandidateEmail
	case session.FactorPhone:
		user.PhoneNumber = sc.CandidatePhone
	case session.FactorPIN:
		hash, err := e.pinHasher.Hash(sc.CandidatePIN)
		if err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		user.PINHash = hash
	case session.FactorBiometric:
		// Credentials live with the backend; the record only needs to
		// exist.
	}
	if _, err := e.repo.Save(ctx, user, false); err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}
	sc.Registered = true

	e.metricInc(MetricEnrollmentCompleted)
	e.emitAudit(ctx, auditEventEnrollCompleted, true, sc, nil, func() map[string]string {
		return map[string]string{"factor": factor.String()}
	})
	return e.returnToOuter(ctx, sc, msgEnrolled)
}

// cancelWizard abandons the wizard without touching the persisted record.
func (e *Engine) cancelWizard(ctx context.Context, sc *session.Context, user *RegisteredUser, factor session.Factor) outcome {
	e.rollbackCandidates(sc, user)
	e.metricInc(MetricEnrollmentCancelled)
	e.emitAudit(ctx, auditEventEnrollCancelled, false, sc, nil, nil)
	return e.returnToOuter(ctx, sc, "")
}

// returnToOuter routes control back to whichever flow launched the wizard.
func (e *Engine) returnToOuter(ctx context.Context, sc *session.Context, msg string) outcome {
	flow := sc.Flow
	sc.ResetWizard()
	sc.Step = session.StepNone
	sc.Message = msg

	switch flow {
	case session.FlowRegistration:
		sc.Screen = session.ScreenRegistration
		return cont()
	case session.FlowInvitation:
		sc.Screen = session.ScreenInvitation
		return cont()
	case session.FlowManageOptions:
		sc.Screen = session.ScreenSelectOptions
		return cont()
	case session.FlowForceWizard:
		// The second factor was already verified before the detour; the
		// attempt concludes whether or not the wizard finished.
		return e.conclude(ctx, sc)
	default:
		sc.Screen = session.ScreenBypass
		return cont()
	}
}

// wizardManage is the biometric credential-management sub-step.
func (e *Engine) wizardManage(ctx context.Context, sc *session.Context, user *RegisteredUser, p wizardPayload) outcome {
	backend := e.registry.backend(session.FactorBiometric)
	if backend == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}

	switch p.Action {
	case actionAdd:
		sc.Step = session.StepCapture
		sc.Message = ""
		return cont()

	case actionDelete:
		if p.CredentialID == "" {
			sc.Message = msgTransient
			return cont()
		}
		creds, err := backend.ListCredentials(ctx, sc.Identity)
		if err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		if len(creds) <= 1 && e.biometricsOnlyRequired() {
			e.metricInc(MetricCredentialRemoveRejected)
			e.emitAudit(ctx, auditEventCredentialRemoved, false, sc, ErrLastCredential, func() map[string]string {
				return map[string]string{"credential_id": p.CredentialID}
			})
			sc.Message = msgLastCredential
			return cont()
		}
		if err := e.repo.RemoveCredential(ctx, sc.Identity, p.CredentialID); err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		e.metricInc(MetricCredentialRemoved)
		e.emitAudit(ctx, auditEventCredentialRemoved, true, sc, nil, func() map[string]string {
			return map[string]string{"credential_id": p.CredentialID}
		})
		sc.Message = ""
		return cont()

	case actionDone:
		return e.returnToOuter(ctx, sc, "")

	default:
		// Not confirmed; re-present the credential list.
		return cont()
	}
}

// biometricsOnlyRequired reports whether biometrics is the one and only
// required factor, the condition under which its last credential is
// protected from deletion.
func (e *Engine) biometricsOnlyRequired() bool {
	req := e.registry.requiredFactors()
	return len(req) == 1 && req[0] == session.FactorBiometric
}
