package adfsmfa

import (
	"context"
	"errors"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

const (
	actionManage   = "manage"
	actionMethod   = "method"
	actionPassword = "password"
	actionNewKey   = "newkey"
	actionDisable  = "disable"
	actionActivate = "activate"
)

const (
	msgOptionsSaved     = "your options have been saved"
	msgPasswordChanged  = "your password has been changed"
	msgPasswordRejected = "the password change was rejected"
	msgPasswordMismatch = "the new password and its confirmation do not match"
	msgNotAllowed       = "this operation is not allowed"
)

// handleManageOptions gates entry into the self-service menu.
func (e *Engine) handleManageOptions(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	if !e.config.Policy.AllowSelfManage {
		sc.Screen = session.ScreenBypass
		sc.Message = ""
		return cont()
	}
	sc.Screen = session.ScreenSelectOptions
	sc.Message = ""
	return cont()
}

// handleSelectOptions is the authenticated self-service menu: change the
// preferred method, launch an enrollment wizard, manage biometric
// credentials, change the password, request a new key, or disable MFA.
func (e *Engine) handleSelectOptions(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}
	if user == nil {
		return failWith(ErrContextInvalid)
	}

	p := parseManage(fields)
	switch p.Action {
	case actionEnroll:
		if !p.FactorOK || !e.registry.wizardEnabled(p.Factor) {
			sc.Message = msgNotAllowed
			return cont()
		}
		screen, ok := wizardScreen(p.Factor)
		if !ok {
			sc.Message = msgNotAllowed
			return cont()
		}
		e.launchWizard(sc, screen, session.FlowManageOptions)
		return cont()

	case actionManage:
		// Biometric credential management.
		if !e.registry.wizardEnabled(session.FactorBiometric) {
			sc.Message = msgNotAllowed
			return cont()
		}
		e.launchWizard(sc, session.ScreenEnrollBiometrics, session.FlowManageOptions)
		sc.Step = session.StepManage
		return cont()

	case actionMethod:
		if !p.FactorOK || !e.registry.enabled(p.Factor) {
			sc.Message = msgNotAllowed
			return cont()
		}
		user.PreferredMethod = p.Factor
		if _, err := e.repo.Save(ctx, user, false); err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		sc.FirstChoice = p.Factor
		e.metricInc(MetricOptionsSaved)
		e.emitAudit(ctx, auditEventOptionsSaved, true, sc, nil, func() map[string]string {
			return map[string]string{"method": p.Factor.String()}
		})
		sc.Message = msgOptionsSaved
		return cont()

	case actionPassword:
		if e.passwords == nil || !e.config.Password.ChangeEnabled {
			sc.Message = msgNotAllowed
			return cont()
		}
		sc.Screen = session.ScreenChangePassword
		sc.Message = ""
		return cont()

	case actionNewKey:
		sc.Flow = session.FlowManageOptions
		sc.Screen = session.ScreenSendKeyRequest
		sc.Message = ""
		return cont()

	case actionDisable:
		if !e.config.Policy.AllowDisable {
			sc.Message = msgNotAllowed
			return cont()
		}
		user.Enabled = false
		if _, err := e.repo.Save(ctx, user, false); err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		sc.Enabled = false
		e.metricInc(MetricOptionsSaved)
		e.emitAudit(ctx, auditEventOptionsSaved, true, sc, nil, func() map[string]string {
			return map[string]string{"disabled": "1"}
		})
		sc.Screen = session.ScreenBypass
		return cont()

	default:
		sc.Screen = session.ScreenBypass
		sc.Message = ""
		return cont()
	}
}

// handleChangePassword runs the optional credential-store password change.
// A mismatched confirmation is a validation error, not a terminal one.
func (e *Engine) handleChangePassword(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	if e.passwords == nil || !e.config.Password.ChangeEnabled {
		sc.Screen = session.ScreenSelectOptions
		sc.Message = msgNotAllowed
		return cont()
	}

	p := parsePassword(fields)
	if p.Old == "" || p.New == "" {
		sc.Message = msgPasswordRejected
		return cont()
	}
	if p.New != p.Confirm {
		sc.Message = msgPasswordMismatch
		return cont()
	}

	err := e.passwords.ChangePassword(ctx, sc.Identity, p.Old, p.New)
	if errors.Is(err, ErrPasswordRejected) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, sc, err, nil)
		sc.Message = msgPasswordRejected
		return cont()
	}
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return failWith(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, sc, nil, nil)
	sc.Screen = session.ScreenSelectOptions
	sc.Message = msgPasswordChanged
	return cont()
}

// handleActivation re-enables a disabled-but-registered account with one
// click.
func (e *Engine) handleActivation(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	if parseAction(fields) == actionCancel {
		sc.Screen = session.ScreenBypass
		sc.Message = ""
		return cont()
	}
	if err := e.repo.Enable(ctx, sc.Identity); err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}
	sc.Enabled = true
	e.metricInc(MetricActivation)
	e.emitAudit(ctx, auditEventActivation, true, sc, nil, nil)
	sc.Screen = session.ScreenBypass
	sc.Message = ""
	return cont()
}
