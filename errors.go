package adfsmfa

import "errors"

var (
	// ErrEngineNotReady means the engine was used before Build completed
	// or without a repository.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrAuthentication is the single opaque error surfaced to the host for
	// fatal failures. Internal detail never crosses this boundary.
	ErrAuthentication = errors.New("authentication error")
	// ErrContextInvalid means the attempt context is missing, anonymous,
	// or parked at an impossible screen.
	ErrContextInvalid = errors.New("invalid attempt context")
	// ErrIdentityRequired is returned by StartAttempt for an empty
	// identity.
	ErrIdentityRequired = errors.New("identity required")
	// ErrIdentityLocked means the identity's cross-attempt lockout
	// cooldown is active.
	ErrIdentityLocked = errors.New("identity locked out")
	// ErrRetryBudgetExhausted records that the attempt spent its full
	// retry budget on user-attributable failures.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	// ErrDeliveryWindowExpired records that the challenge outlived the
	// configured delivery window.
	ErrDeliveryWindowExpired = errors.New("delivery window expired")
	// ErrFactorUnavailable means the selected factor has no enabled,
	// available provider.
	ErrFactorUnavailable = errors.New("no enabled provider for factor")
	// ErrEnrollmentDisabled means tenant policy forbids the requested
	// enrollment.
	ErrEnrollmentDisabled = errors.New("enrollment disabled by policy")
	// ErrRepositoryUnavailable wraps repository failures during attempt
	// classification.
	ErrRepositoryUnavailable = errors.New("registration repository unavailable")
	// ErrLastCredential refuses deleting the last credential of the only
	// required factor.
	ErrLastCredential = errors.New("cannot remove last required credential")
	// ErrPasswordRejected is the sentinel a [PasswordManager] returns for a
	// user-attributable rejection (wrong current password, policy violation).
	// Any other error from the manager is treated as fatal.
	ErrPasswordRejected = errors.New("password change rejected")
	// ErrAdminRelayUnavailable means no administrative provisioning
	// channel is configured or it refused the request.
	ErrAdminRelayUnavailable = errors.New("administrative relay unavailable")
)
