package adfsmfa

import (
	"context"
	"fmt"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

const (
	actionEnroll   = "enroll"
	actionSkip     = "skip"
	actionContinue = "continue"
)

const (
	msgPickFactor     = "choose a method to enroll"
	msgRequiredFactor = "this method is required and cannot be skipped"
)

// handleRegistration drives the self-service onboarding shell: the user
// enrolls factors one wizard at a time until every required factor is done,
// then the account is enabled and the attempt proceeds to Bypass.
func (e *Engine) handleRegistration(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	return e.shellStep(ctx, sc, fields, session.FlowRegistration)
}

// handleInvitation is the administrative-invitation variant of the shell:
// enrollment data is captured the same way, but completion hands off to the
// out-of-band administrative approval handshake instead of self-enabling.
func (e *Engine) handleInvitation(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	return e.shellStep(ctx, sc, fields, session.FlowInvitation)
}

func (e *Engine) shellStep(ctx context.Context, sc *session.Context, fields map[string]string, flow session.Flow) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}

	p := parseShell(fields)
	switch p.Action {
	case actionEnroll:
		if !p.FactorOK || !e.registry.wizardEnabled(p.Factor) {
			sc.Message = msgPickFactor
			return cont()
		}
		screen, ok := wizardScreen(p.Factor)
		if !ok {
			sc.Message = msgPickFactor
			return cont()
		}
		e.launchWizard(sc, screen, flow)
		return cont()

	case actionSkip:
		if !p.FactorOK {
			sc.Message = msgPickFactor
			return cont()
		}
		if e.registry.required(p.Factor) {
			sc.Message = msgRequiredFactor
			return cont()
		}
		sc.MarkSkipped(p.Factor)
		return e.shellAdvance(ctx, sc, user, flow)

	default:
		return e.shellAdvance(ctx, sc, user, flow)
	}
}

// EnrollmentChoices lists the factors a registration or invitation shell
// can still offer this attempt: wizard-enabled, not yet enrolled, and not
// skipped. Hosts call it when rendering the shell screen.
func (e *Engine) EnrollmentChoices(ctx context.Context, sc *session.Context) ([]session.Factor, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	if sc == nil || sc.Identity == "" {
		return nil, ErrContextInvalid
	}
	user, err := e.repo.Load(ctx, sc.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	var out []session.Factor
	for _, f := range e.registry.wizardFactors() {
		if sc.Skipped(f) || e.enrolled(ctx, user, f) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// shellAdvance launches the wizard of the next required-but-unenrolled
// factor, or finishes the shell when none remains.
func (e *Engine) shellAdvance(ctx context.Context, sc *session.Context, user *RegisteredUser, flow session.Flow) outcome {
	for _, f := range e.registry.requiredFactors() {
		if e.enrolled(ctx, user, f) {
			continue
		}
		screen, ok := wizardScreen(f)
		if !ok {
			continue
		}
		e.launchWizard(sc, screen, flow)
		return cont()
	}
	return e.finishShell(ctx, sc, user, flow)
}

func (e *Engine) finishShell(ctx context.Context, sc *session.Context, user *RegisteredUser, flow session.Flow) outcome {
	if user == nil {
		// Nothing was enrolled and nothing is required.
		sc.Screen = session.ScreenBypass
		return cont()
	}

	if flow == session.FlowInvitation {
		// The record stays disabled until an administrator approves it.
		sc.Screen = session.ScreenSendAdministrativeRequest
		sc.Message = ""
		return cont()
	}

	if err := e.repo.Enable(ctx, sc.Identity); err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}
	sc.Enabled = true
	e.emitAudit(ctx, auditEventOptionsSaved, true, sc, nil, nil)
	sc.Screen = session.ScreenBypass
	sc.Message = ""
	return cont()
}

// handleSendAdministrativeRequest relays the captured enrollment to the
// administrative approval channel. The record stays disabled; whether the
// user may continue without a second factor is a policy decision.
func (e *Engine) handleSendAdministrativeRequest(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}
	if user == nil {
		return failWith(ErrContextInvalid)
	}
	if e.relay == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrAdminRelayUnavailable)
	}

	code, err := e.relay.SendEnrollmentRequest(ctx, user)
	if err != nil || code == ResultTransient {
		return e.collaboratorFailure(ctx, sc, err)
	}
	if code != ResultSuccess && code != ResultPending {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrAdminRelayUnavailable)
	}

	e.metricInc(MetricAdminRequestSent)
	e.emitAudit(ctx, auditEventAdminRequest, true, sc, nil, nil)

	if e.config.Policy.MFARequired {
		// No usable factor until approval lands.
		return e.lockTerminal(ctx, sc, msgAwaitAdmin, nil)
	}
	sc.Screen = session.ScreenBypass
	sc.Message = msgAwaitAdmin
	return cont()
}

// handleSendKeyRequest asks the administrative channel for fresh OTP secret
// material and regenerates the stored key on success.
func (e *Engine) handleSendKeyRequest(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}
	if user == nil {
		return failWith(ErrContextInvalid)
	}
	if e.relay == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrAdminRelayUnavailable)
	}

	code, err := e.relay.SendKeyRequest(ctx, user)
	if err != nil || code == ResultTransient {
		return e.collaboratorFailure(ctx, sc, err)
	}
	if code != ResultSuccess {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrAdminRelayUnavailable)
	}
	if _, err := e.repo.Save(ctx, user, true); err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}

	e.metricInc(MetricKeyRequestSent)
	e.emitAudit(ctx, auditEventKeyRequest, true, sc, nil, nil)

	if sc.Flow == session.FlowManageOptions {
		sc.ResetWizard()
		sc.Screen = session.ScreenSelectOptions
		sc.Message = msgEnrolled
		return cont()
	}
	sc.Screen = session.ScreenBypass
	sc.Message = ""
	return cont()
}
