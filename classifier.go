package adfsmfa

import (
	"context"
	"fmt"
	"log"

	"github.com/neos-sdi/adfsmfa-sub013/internal"
	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// StartAttempt opens a fresh authentication attempt for the given primary
// identity and classifies it to its initial screen. A new attempt always
// gets a fresh retry budget and delivery window.
func (e *Engine) StartAttempt(ctx context.Context, identity string) (*session.Context, *Presentation, error) {
	if e == nil || e.repo == nil {
		return nil, nil, ErrEngineNotReady
	}
	if identity == "" {
		return nil, nil, ErrIdentityRequired
	}

	sc := &session.Context{
		AttemptID: internal.NewAttemptID(),
		Identity:  identity,
		StartedAt: e.now().Unix(),
	}

	// Cross-attempt lockout cooldown. Any limiter error fails closed.
	if err := e.lockout.Check(ctx, identity); err != nil {
		log.Print("adfsmfa: identity lockout active for " + identity)
		sc.Screen = session.ScreenLocking
		sc.TargetOnError = session.ScreenDefinitiveError
		sc.Locked = true
		sc.Message = msgLockedOut
		e.metricInc(MetricIdentityLockout)
		e.emitAudit(ctx, auditEventAttemptLockedOut, false, sc, err, nil)
		return sc, e.present(sc), nil
	}

	user, err := e.repo.Load(ctx, identity)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	sc.Registered = user != nil
	sc.Enabled = user != nil && user.Enabled
	if user != nil {
		sc.FirstChoice = user.PreferredMethod
	}

	sc.Screen = e.classify(sc, user)
	if sc.Screen == session.ScreenLocking {
		sc.TargetOnError = session.ScreenDefinitiveError
		sc.Locked = true
		sc.Message = msgLockedOut
		cause := ErrIdentityLocked
		if !sc.Registered {
			// Admin-only provisioning refuses unknown identities.
			cause = ErrEnrollmentDisabled
		}
		e.emitAudit(ctx, auditEventTerminalLock, false, sc, cause, nil)
	}

	e.metricInc(MetricAttemptStarted)
	e.emitAudit(ctx, auditEventAttemptStarted, true, sc, nil, nil)

	// PreSet carries no user interaction: resolve it inline so the first
	// presentation is already the challenge (or the method chooser).
	if sc.Screen == session.ScreenPreSet {
		out := e.resolvePreSet(ctx, sc, user)
		if out.kind == outcomeFatal {
			_, ferr := e.failAttempt(ctx, sc, out.err)
			return nil, nil, ferr
		}
	}

	e.emitAudit(ctx, auditEventAttemptClassified, true, sc, nil, func() map[string]string {
		return map[string]string{"screen": sc.Screen.String()}
	})
	return sc, e.present(sc), nil
}

// classify maps the registration state and the tenant enrollment policy to
// the attempt's initial screen.
func (e *Engine) classify(sc *session.Context, user *RegisteredUser) session.Screen {
	policy := e.config.Policy
	advertising := policy.advertisingActive(e.now())

	if user == nil {
		switch policy.Enrollment {
		case EnrollmentAdministrative:
			// Provisioning is admin-only; an unknown identity cannot proceed.
			return session.ScreenLocking
		case EnrollmentInvitation:
			return session.ScreenInvitation
		case EnrollmentManaged:
			if advertising {
				return session.ScreenInvitation
			}
			return session.ScreenBypass
		case EnrollmentRequired:
			return session.ScreenRegistration
		case EnrollmentAllowed:
			if advertising {
				return session.ScreenRegistration
			}
			return session.ScreenBypass
		default:
			return session.ScreenBypass
		}
	}

	if !user.Enabled {
		if policy.MFARequired {
			return session.ScreenLocking
		}
		if advertising {
			return session.ScreenActivation
		}
		return session.ScreenBypass
	}

	if user.PreferredMethod == session.FactorChoose {
		return session.ScreenChooseMethod
	}
	return session.ScreenPreSet
}
