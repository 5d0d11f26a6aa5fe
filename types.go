package adfsmfa

import (
	"context"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// RegisteredUser is the persisted MFA registration record. It is owned by
// the host's repository; the engine reads and writes it through
// [UserRepository] but never stores it itself. The record is created on the
// first successful enrollment completion and never deleted by the engine.
type RegisteredUser struct {
	Identity        string
	PreferredMethod session.Factor

	// MailAddress and PhoneNumber are enrollment data for the email and
	// phone factors.
	MailAddress string
	PhoneNumber string

	// PINHash is the argon2id hash of the numeric PIN, or empty when no
	// PIN is enrolled. The plaintext PIN is never persisted.
	PINHash string

	// KeyHandle references the OTP secret material held by the OTP
	// backend. Empty means no key has been provisioned.
	KeyHandle string

	Enabled bool
}

// Clone returns a deep copy of u, or nil for a nil receiver.
func (u *RegisteredUser) Clone() *RegisteredUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserRepository is implemented by the host to persist [RegisteredUser]
// records. Each call is a single atomic operation; the engine never batches
// or composes them into multi-step transactions.
type UserRepository interface {
	// Load returns the record for identity, or (nil, nil) when no record
	// exists.
	Load(ctx context.Context, identity string) (*RegisteredUser, error)
	// Save persists the record. When regenerateKey is set the repository
	// must provision fresh OTP secret material and return the updated
	// record.
	Save(ctx context.Context, user *RegisteredUser, regenerateKey bool) (*RegisteredUser, error)
	// Enable flips the persisted enabled flag for identity.
	Enable(ctx context.Context, identity string) error
	// RemoveCredential deletes one stored biometric credential.
	RemoveCredential(ctx context.Context, identity, credentialID string) error
}

// ResultCode classifies the outcome of a factor backend call. The engine
// never parses backend messages to guess retryability; the code is the
// contract.
type ResultCode uint8

const (
	// ResultSuccess means the challenge or verification succeeded.
	ResultSuccess ResultCode = iota
	// ResultPending means an out-of-band confirmation has not arrived yet.
	ResultPending
	// ResultTransient is a retryable environment failure. It never counts
	// against the login retry budget.
	ResultTransient
	// ResultDenied is a user-attributable verification failure. It counts
	// against the login retry budget.
	ResultDenied
	// ResultError is a non-retryable backend failure. The engine fails
	// closed on it.
	ResultError
)

func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultPending:
		return "pending"
	case ResultTransient:
		return "transient"
	case ResultDenied:
		return "denied"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}

// DeliveryMode describes how a factor completes.
type DeliveryMode uint8

const (
	// ModeTwoWay factors collect the response on the same screen that
	// issued the challenge (OTP code, WebAuthn assertion).
	ModeTwoWay DeliveryMode = iota
	// ModeOneWay factors complete by waiting out an out-of-band
	// confirmation (cloud push); postbacks poll until the backend reports
	// success.
	ModeOneWay
	// ModeOutOfBand factors send a code over a side channel and collect it
	// on the identification screen (email, SMS).
	ModeOutOfBand
)

// Challenge is returned by [FactorBackend.IssueChallenge].
type Challenge struct {
	// Payload is an opaque string round-tripped to the client for one
	// challenge/response exchange (e.g. serialized WebAuthn options).
	Payload string
	Code    ResultCode
	Detail  string
}

// CredentialInfo describes one stored biometric credential.
type CredentialInfo struct {
	ID        string
	Label     string
	CreatedAt time.Time
}

// FactorBackend is implemented once per factor kind. The engine calls it
// both for login challenges and for enrollment verification; the backend
// can distinguish the two by inspecting the context's screen.
type FactorBackend interface {
	Kind() session.Factor
	Mode() DeliveryMode
	// IssueChallenge starts a challenge for the attempt. All I/O completes
	// (or fails) before it returns. During enrollment capture, backends
	// that mint secret material place the new key handle in the context's
	// CandidateKey and return the client-facing provisioning payload.
	IssueChallenge(ctx context.Context, sc *session.Context, user *RegisteredUser) (Challenge, error)
	// VerifyResponse checks a submitted code or ceremony response. The
	// error return is reserved for transport-level failures; semantic
	// outcomes travel in the ResultCode.
	VerifyResponse(ctx context.Context, sc *session.Context, user *RegisteredUser, response string) (ResultCode, error)
	// IsAvailable reports whether this factor can be used by this user
	// right now.
	IsAvailable(ctx context.Context, sc *session.Context, user *RegisteredUser) bool
	// ListCredentials enumerates stored credentials. Only the biometric
	// backend returns a non-empty list; others return (nil, nil).
	ListCredentials(ctx context.Context, identity string) ([]CredentialInfo, error)
}

// Presenter renders a screen to opaque HTML. It receives only the current
// state and context, never mutates the context, and its output is treated
// as opaque by the engine.
type Presenter interface {
	Render(sc *session.Context) (string, error)
}

// PasswordManager performs the optional credential-store password change.
// Implementations return [ErrPasswordRejected] for user-attributable
// rejections; any other error is treated as fatal.
type PasswordManager interface {
	ChangePassword(ctx context.Context, identity, oldPassword, newPassword string) error
}

// AdminRelay is the out-of-band administrative provisioning channel behind
// the SendAdministrativeRequest and SendKeyRequest screens.
type AdminRelay interface {
	SendEnrollmentRequest(ctx context.Context, user *RegisteredUser) (ResultCode, error)
	SendKeyRequest(ctx context.Context, user *RegisteredUser) (ResultCode, error)
}

// Presentation tells the host which screen to render next.
type Presentation struct {
	Screen  session.Screen
	Step    session.Step
	Message string
	// Terminal marks a dead end: the next postback on this context will
	// fail with [ErrAuthentication].
	Terminal bool
	// HTML is filled when a [Presenter] is configured, otherwise empty.
	HTML string
}

// Claims is the terminal authentication decision for a concluded attempt.
type Claims struct {
	Identity string
	Factor   session.Factor
	// Method is the protocol-level authentication-method URI for Factor.
	Method   string
	IssuedAt time.Time
	// Token carries a signed step-up JWT when token issuance is
	// configured, otherwise empty.
	Token string
}

// Result is returned by [Engine.Advance]: either a new presentation or,
// on final success, the emitted claims. Exactly one of the two is set.
type Result struct {
	Presentation *Presentation
	Claims       *Claims
}
