package adfsmfa

import (
	"context"
	"log"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/jwt"
	"github.com/neos-sdi/adfsmfa-sub013/password"
	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// Engine is the second-factor decision engine. It is re-entered fresh on
// every host postback and keeps no cross-call state: everything it needs is
// in the [session.Context] the host round-trips.
//
// Engine instances are intended to be configured during initialization
// through [Builder.Build] and then treated as immutable.
type Engine struct {
	config    Config
	registry  *capabilityRegistry
	repo      UserRepository
	presenter Presenter
	passwords PasswordManager
	relay     AdminRelay

	contextStore *session.Store
	lockout      *lockoutLimiter
	audit        *auditDispatcher
	metrics      *Metrics
	tokens       *jwt.Manager
	pinHasher    *password.Argon2

	clock func() time.Time
}

// User-visible retry messages. The host localizes; these are stable keys
// more than prose.
const (
	msgWrongCode        = "verification failed, try again"
	msgWrongPIN         = "verification failed, try again"
	msgTransient        = "temporary error, try again"
	msgExpired          = "your authentication window has expired"
	msgRetriesExhausted = "too many failed attempts"
	msgNoProvider       = "no authentication method is available"
	msgLockedOut        = "account temporarily locked"
	msgAwaitAdmin       = "your registration is awaiting administrator approval"
)

type outcomeKind uint8

const (
	outcomeContinue outcomeKind = iota
	outcomeClaims
	outcomeFatal
)

// outcome is the explicit result of one state handler: continue to the
// screen the handler left in the context, conclude with claims, or fail
// fatally. Handlers never signal recoverable conditions through errors.
type outcome struct {
	kind   outcomeKind
	claims *Claims
	err    error
}

func cont() outcome              { return outcome{kind: outcomeContinue} }
func emit(c *Claims) outcome     { return outcome{kind: outcomeClaims, claims: c} }
func failWith(err error) outcome { return outcome{kind: outcomeFatal, err: err} }

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under pressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

// Advance executes exactly one screen's business rule against the postback
// fields and returns either the next presentation or, on final success, the
// emitted claims. Recoverable failures are resolved internally; only
// terminal-lock conditions and truly unexpected errors surface as the
// opaque [ErrAuthentication].
func (e *Engine) Advance(ctx context.Context, sc *session.Context, fields map[string]string) (result *Result, err error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	if sc == nil || sc.Identity == "" || sc.Screen == session.ScreenNone {
		return nil, ErrContextInvalid
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricAdvanceLatency, time.Since(start))
		}()
	}

	// The host pipeline must never crash on a handler panic.
	defer func() {
		if r := recover(); r != nil {
			log.Print("adfsmfa: panic in state handler for screen " + sc.Screen.String())
			result, err = e.failAttempt(ctx, sc, ErrAuthentication)
		}
	}()

	handler := e.handlerFor(sc.Screen)
	if handler == nil {
		return e.failAttempt(ctx, sc, ErrContextInvalid)
	}

	out := handler(ctx, sc, fields)
	switch out.kind {
	case outcomeClaims:
		return &Result{Claims: out.claims}, nil
	case outcomeFatal:
		return e.failAttempt(ctx, sc, out.err)
	default:
		return &Result{Presentation: e.present(sc)}, nil
	}
}

func (e *Engine) handlerFor(s session.Screen) func(context.Context, *session.Context, map[string]string) outcome {
	switch s {
	case session.ScreenPreSet:
		return e.handlePreSet
	case session.ScreenChooseMethod:
		return e.handleChooseMethod
	case session.ScreenSendAuthRequest:
		return e.handleSendAuthRequest
	case session.ScreenIdentification:
		return e.handleIdentification
	case session.ScreenRegistration:
		return e.handleRegistration
	case session.ScreenInvitation:
		return e.handleInvitation
	case session.ScreenActivation:
		return e.handleActivation
	case session.ScreenManageOptions:
		return e.handleManageOptions
	case session.ScreenSelectOptions:
		return e.handleSelectOptions
	case session.ScreenChangePassword:
		return e.handleChangePassword
	case session.ScreenBypass:
		return e.handleBypass
	case session.ScreenLocking:
		return e.handleLocking
	case session.ScreenSendAdministrativeRequest:
		return e.handleSendAdministrativeRequest
	case session.ScreenSendKeyRequest:
		return e.handleSendKeyRequest
	case session.ScreenEnrollOTP, session.ScreenEnrollEmail, session.ScreenEnrollPhone,
		session.ScreenEnrollBiometrics, session.ScreenEnrollPin:
		return e.handleEnrollment
	default:
		return nil
	}
}

// present materializes the host-facing view of the current screen.
func (e *Engine) present(sc *session.Context) *Presentation {
	p := &Presentation{
		Screen:   sc.Screen,
		Step:     sc.Step,
		Message:  sc.Message,
		Terminal: sc.Locked && sc.TargetOnError == session.ScreenDefinitiveError,
	}
	if e.presenter != nil {
		if html, err := e.presenter.Render(sc); err == nil {
			p.HTML = html
		} else {
			log.Print("adfsmfa: presenter render failed for screen " + sc.Screen.String())
		}
	}
	return p
}

// failAttempt is the outermost fatal boundary: log with identity and state
// name, audit, park the context terminally, and surface one opaque error.
func (e *Engine) failAttempt(ctx context.Context, sc *session.Context, cause error) (*Result, error) {
	log.Print("adfsmfa: fatal authentication error for " + sc.Identity + " at screen " + sc.Screen.String())
	e.metricInc(MetricFatalError)
	e.emitAudit(ctx, auditEventFatal, false, sc, cause, nil)

	sc.Locked = true
	sc.Screen = session.ScreenLocking
	sc.TargetOnError = session.ScreenDefinitiveError
	return nil, ErrAuthentication
}

// lockTerminal parks the attempt at the Locking screen with no way back and
// records the lock against the identity's cross-attempt lockout counter.
func (e *Engine) lockTerminal(ctx context.Context, sc *session.Context, msg string, cause error) outcome {
	sc.Screen = session.ScreenLocking
	sc.TargetOnError = session.ScreenDefinitiveError
	sc.Locked = true
	sc.Message = msg
	e.metricInc(MetricTerminalLock)
	e.emitAudit(ctx, auditEventTerminalLock, false, sc, cause, nil)
	if err := e.lockout.RecordLock(ctx, sc.Identity); err != nil {
		log.Print("adfsmfa: lockout counter update failed")
	}
	return cont()
}

// lockRecoverable parks the attempt at the Locking screen; the next
// postback returns control to returnTo.
func (e *Engine) lockRecoverable(sc *session.Context, msg string, returnTo session.Screen) outcome {
	sc.Screen = session.ScreenLocking
	sc.TargetOnError = returnTo
	sc.Message = msg
	return cont()
}

// handleLocking resolves the error waypoint: terminal contexts fail with
// the opaque host error, recoverable ones return to their stored target.
func (e *Engine) handleLocking(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	if sc.TargetOnError == session.ScreenDefinitiveError {
		return failWith(ErrAuthentication)
	}
	target := sc.TargetOnError
	if target == session.ScreenNone {
		target = session.ScreenBypass
	}
	sc.Screen = target
	sc.TargetOnError = session.ScreenNone
	return cont()
}

// handleBypass is the success exit, unless a forced-enrollment condition is
// pending, in which case it redirects into the relevant wizard instead.
func (e *Engine) handleBypass(ctx context.Context, sc *session.Context, fields map[string]string) outcome {
	user, out, ok := e.loadUserOutcome(ctx, sc)
	if !ok {
		return out
	}
	if screen, forced := e.forcedEnrollment(ctx, sc, user); forced {
		e.metricInc(MetricForcedEnrollment)
		e.launchWizard(sc, screen, session.FlowForceWizard)
		return cont()
	}
	return e.conclude(ctx, sc)
}

// conclude emits the terminal identity claims. It is the only place claims
// are built, and it runs exactly once per concluded attempt.
func (e *Engine) conclude(ctx context.Context, sc *session.Context) outcome {
	factor := sc.Selected
	claims := &Claims{
		Identity: sc.Identity,
		Factor:   factor,
		Method:   AuthMethodURI(factor),
		IssuedAt: e.now(),
	}
	if e.tokens != nil {
		token, err := e.tokens.CreateStepUp(sc.Identity, factor.String(), claims.Method)
		if err != nil {
			return failWith(err)
		}
		claims.Token = token
	}

	if err := e.lockout.Reset(ctx, sc.Identity); err != nil {
		log.Print("adfsmfa: lockout counter reset failed")
	}
	sc.Screen = session.ScreenBypass
	sc.Message = ""
	e.metricInc(MetricClaimsIssued)
	e.emitAudit(ctx, auditEventClaimsIssued, true, sc, nil, func() map[string]string {
		return map[string]string{
			"method": claims.Method,
		}
	})
	return emit(claims)
}

// loadUserOutcome fetches the registration record, converting repository
// failures into the shared recoverable-retry rule.
func (e *Engine) loadUserOutcome(ctx context.Context, sc *session.Context) (*RegisteredUser, outcome, bool) {
	user, err := e.repo.Load(ctx, sc.Identity)
	if err != nil {
		return nil, e.collaboratorFailure(ctx, sc, err), false
	}
	return user, outcome{}, true
}

// collaboratorFailure implements the shared rule for unexpected collaborator
// errors: recoverable retry presentation, escalating to fatal only when the
// retry budget is already exhausted. Environment failures never increment
// the retry counter.
func (e *Engine) collaboratorFailure(ctx context.Context, sc *session.Context, cause error) outcome {
	log.Print("adfsmfa: collaborator failure for " + sc.Identity + " at screen " + sc.Screen.String())
	if sc.RetryCount >= e.config.Retry.MaxRetries {
		return failWith(cause)
	}
	sc.Message = msgTransient
	return cont()
}

// windowExpired evaluates the delivery window at the top of every
// challenge-verifying handler; there are no scheduled timers.
func (e *Engine) windowExpired(sc *session.Context) bool {
	deadline := sc.StartedAt + int64(e.config.Retry.DeliveryWindow/time.Second)
	return e.now().Unix() > deadline
}

// userFailure applies the shared retry budget to one user-attributable
// verification failure.
func (e *Engine) userFailure(ctx context.Context, sc *session.Context, msg string) outcome {
	sc.RetryCount++
	e.metricInc(MetricVerifyFailure)
	e.emitAudit(ctx, auditEventVerifyFailure, false, sc, nil, nil)
	if sc.RetryCount >= e.config.Retry.MaxRetries {
		e.metricInc(MetricRetryExhausted)
		return e.lockTerminal(ctx, sc, msgRetriesExhausted, ErrRetryBudgetExhausted)
	}
	sc.Message = msg
	return cont()
}

// SaveContext persists sc through the optional Redis context store, keyed
// by attempt ID, with the delivery window as TTL.
func (e *Engine) SaveContext(ctx context.Context, sc *session.Context) error {
	if e.contextStore == nil {
		return session.ErrRedisUnavailable
	}
	return e.contextStore.Save(ctx, sc, e.config.Retry.DeliveryWindow)
}

// LoadContext restores a context previously stored with [Engine.SaveContext].
func (e *Engine) LoadContext(ctx context.Context, attemptID string) (*session.Context, error) {
	if e.contextStore == nil {
		return nil, session.ErrRedisUnavailable
	}
	return e.contextStore.Load(ctx, attemptID)
}
