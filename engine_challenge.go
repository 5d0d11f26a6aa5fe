package adfsmfa

import (
	"context"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

const (
	actionResend = "resend"
	actionCancel = "cancel"
)

func containsFactor(list []session.Factor, f session.Factor) bool {
	for _, v := range list {
		if v == f {
			return true
		}
	}
	return false
}

func (e *Engine) handlePreSet(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}
	return e.resolvePreSet(ctx, sc, user)
}

// resolvePreSet picks the factor to challenge with zero user interaction
// when possible: the user's preferred factor if it is usable, the single
// available factor otherwise, and the chooser only when genuinely ambiguous.
func (e *Engine) resolvePreSet(ctx context.Context, sc *session.Context, user *RegisteredUser) outcome {
	available := e.registry.availableFor(ctx, sc, user)
	if len(available) == 0 {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}

	preferred := session.FactorNone
	if user != nil {
		preferred = user.PreferredMethod
	}
	if preferred != session.FactorNone && preferred != session.FactorChoose &&
		containsFactor(available, preferred) {
		return e.beginChallenge(ctx, sc, user, preferred)
	}
	if len(available) == 1 {
		return e.beginChallenge(ctx, sc, user, available[0])
	}

	sc.Screen = session.ScreenChooseMethod
	sc.Message = ""
	return cont()
}

func (e *Engine) handleChooseMethod(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}

	p := parseChoose(fields)
	if !p.ChoiceOK {
		// Absent or unparseable method name: not confirmed, re-present.
		sc.Message = "choose an authentication method"
		return cont()
	}
	if !e.registry.enabled(p.Factor) ||
		!containsFactor(e.registry.availableFor(ctx, sc, user), p.Factor) {
		// A named but unusable factor is a policy violation, not a typo.
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}

	if p.Remember && e.config.Policy.RememberChoice && user != nil {
		user.PreferredMethod = p.Factor
		if _, err := e.repo.Save(ctx, user, false); err != nil {
			return e.collaboratorFailure(ctx, sc, err)
		}
		sc.FirstChoice = p.Factor
	}
	return e.beginChallenge(ctx, sc, user, p.Factor)
}

// beginChallenge issues a challenge for factor and routes the attempt to
// the screen that collects its response. A disabled, missing, or erroring
// provider fails closed to a terminal lock; it is never silently skipped.
func (e *Engine) beginChallenge(ctx context.Context, sc *session.Context, user *RegisteredUser, factor session.Factor) outcome {
	backend := e.registry.backend(factor)
	if backend == nil || !backend.IsAvailable(ctx, sc, user) {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}
	sc.Selected = factor

	ch, err := backend.IssueChallenge(ctx, sc, user)
	if err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}
	switch ch.Code {
	case ResultSuccess, ResultPending:
		sc.PendingPayload = ch.Payload
		sc.Message = ""
		if backend.Mode() == ModeOutOfBand {
			sc.Screen = session.ScreenIdentification
		} else {
			sc.Screen = session.ScreenSendAuthRequest
		}
		e.metricInc(MetricChallengeIssued)
		e.emitAudit(ctx, auditEventChallengeIssued, true, sc, nil, nil)
		return cont()
	case ResultTransient:
		sc.Message = msgTransient
		return cont()
	default:
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}
}

// handleSendAuthRequest collects the response of a two-way challenge or
// polls a one-way backend until its out-of-band confirmation lands.
func (e *Engine) handleSendAuthRequest(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	if out, ok := e.verifyPreflight(ctx, sc); !ok {
		return out
	}
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}

	p := parseChallenge(fields)
	if p.Action == actionResend {
		e.metricInc(MetricChallengeResent)
		return e.beginChallenge(ctx, sc, user, sc.Selected)
	}

	backend := e.registry.backend(sc.Selected)
	if backend == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}

	if out, ok := e.pinGate(ctx, sc, user, p.PIN); !ok {
		return out
	}

	if backend.Mode() == ModeOneWay {
		// Poll; the response field is usually empty for push factors.
		code, err := backend.VerifyResponse(ctx, sc, user, p.Response)
		return e.verifyResult(ctx, sc, user, code, err)
	}

	response := p.Response
	if response == "" {
		response = p.Code
	}
	if response == "" {
		// Required key absent: not confirmed.
		return e.userFailure(ctx, sc, msgWrongCode)
	}
	code, err := backend.VerifyResponse(ctx, sc, user, response)
	return e.verifyResult(ctx, sc, user, code, err)
}

// handleIdentification verifies the code of an already initiated
// out-of-band exchange (email or SMS code).
func (e *Engine) handleIdentification(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	if out, ok := e.verifyPreflight(ctx, sc); !ok {
		return out
	}
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}

	p := parseChallenge(fields)
	if p.Action == actionResend {
		e.metricInc(MetricChallengeResent)
		return e.beginChallenge(ctx, sc, user, sc.Selected)
	}

	backend := e.registry.backend(sc.Selected)
	if backend == nil {
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}
	if out, ok := e.pinGate(ctx, sc, user, p.PIN); !ok {
		return out
	}
	if p.Code == "" {
		return e.userFailure(ctx, sc, msgWrongCode)
	}
	code, err := backend.VerifyResponse(ctx, sc, user, p.Code)
	return e.verifyResult(ctx, sc, user, code, err)
}

// verifyPreflight applies the two rules shared by every challenge-verifying
// screen, window first: an expired delivery window locks regardless of the
// retry budget, and an exhausted budget locks regardless of the submission.
func (e *Engine) verifyPreflight(ctx context.Context, sc *session.Context) (outcome, bool) {
	if e.windowExpired(sc) {
		e.metricInc(MetricWindowExpired)
		return e.lockTerminal(ctx, sc, msgExpired, ErrDeliveryWindowExpired), false
	}
	if sc.RetryCount >= e.config.Retry.MaxRetries {
		e.metricInc(MetricRetryExhausted)
		return e.lockTerminal(ctx, sc, msgRetriesExhausted, ErrRetryBudgetExhausted), false
	}
	return outcome{}, true
}

// pinGate validates the in-line PIN when the active factor requires one and
// it has not yet been confirmed this attempt. A wrong PIN is not
// distinguished from a wrong code: both count against the retry budget.
func (e *Engine) pinGate(ctx context.Context, sc *session.Context, user *RegisteredUser, pin string) (outcome, bool) {
	c, ok := e.registry.get(sc.Selected)
	if !ok || !c.cfg.RequirePIN || sc.PinDone {
		return outcome{}, true
	}
	if user == nil || user.PINHash == "" {
		// PIN required by policy but never enrolled: fail closed.
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable), false
	}
	if pin == "" {
		e.metricInc(MetricPinRejected)
		return e.userFailure(ctx, sc, msgWrongPIN), false
	}
	match, err := e.pinHasher.Verify(pin, user.PINHash)
	if err != nil {
		return e.collaboratorFailure(ctx, sc, err), false
	}
	if !match {
		e.metricInc(MetricPinRejected)
		return e.userFailure(ctx, sc, msgWrongPIN), false
	}
	sc.PinDone = true
	return outcome{}, true
}

// verifyResult maps a backend verification result onto the shared retry and
// lockout rules. Only user-attributable denials touch the retry counter.
func (e *Engine) verifyResult(ctx context.Context, sc *session.Context, user *RegisteredUser, code ResultCode, err error) outcome {
	if err != nil {
		return e.collaboratorFailure(ctx, sc, err)
	}
	switch code {
	case ResultSuccess:
		sc.PendingPayload = ""
		e.metricInc(MetricVerifySuccess)
		e.emitAudit(ctx, auditEventVerifySuccess, true, sc, nil, nil)
		return e.afterVerifySuccess(ctx, sc, user)
	case ResultPending:
		// Out-of-band confirmation not in yet; keep waiting.
		return cont()
	case ResultTransient:
		sc.Message = msgTransient
		return cont()
	case ResultDenied:
		return e.userFailure(ctx, sc, msgWrongCode)
	default:
		return e.lockTerminal(ctx, sc, msgNoProvider, ErrFactorUnavailable)
	}
}

// afterVerifySuccess finalizes a verified attempt, routing through forced
// enrollment of the user's unenrolled first-choice factor when policy asks
// for it.
func (e *Engine) afterVerifySuccess(ctx context.Context, sc *session.Context, user *RegisteredUser) outcome {
	if screen, forced := e.forcedEnrollment(ctx, sc, user); forced {
		e.metricInc(MetricForcedEnrollment)
		e.launchWizard(sc, screen, session.FlowForceWizard)
		return cont()
	}
	return e.conclude(ctx, sc)
}
