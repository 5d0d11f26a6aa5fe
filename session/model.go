package session

// Factor identifies a second-authentication-factor mechanism.
type Factor uint8

const (
	// FactorNone is the zero factor; it concludes an attempt without a second factor.
	FactorNone Factor = iota
	// FactorChoose is the "ask me every time" preferred-method sentinel.
	FactorChoose
	// FactorOTP is a time-based one-time-password generator (authenticator app).
	FactorOTP
	// FactorEmail is a one-time code delivered by email.
	FactorEmail
	// FactorPhone is a one-time code delivered by SMS or voice.
	FactorPhone
	// FactorBiometric is a WebAuthn/biometric ceremony.
	FactorBiometric
	// FactorPIN is a numeric PIN factor.
	FactorPIN
	// FactorAzure is the cloud MFA relay.
	FactorAzure

	factorCount
)

var factorNames = map[Factor]string{
	FactorNone:      "none",
	FactorChoose:    "choose",
	FactorOTP:       "otp",
	FactorEmail:     "email",
	FactorPhone:     "phone",
	FactorBiometric: "biometric",
	FactorPIN:       "pin",
	FactorAzure:     "azure",
}

func (f Factor) String() string {
	if name, ok := factorNames[f]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether f names a concrete factor (not a sentinel).
func (f Factor) Valid() bool {
	return f >= FactorOTP && f < factorCount
}

// ParseFactor maps a postback field value to a Factor. The second return
// value is false for anything that does not name a concrete factor.
func ParseFactor(s string) (Factor, bool) {
	for f, name := range factorNames {
		if name == s && f.Valid() {
			return f, true
		}
	}
	return FactorNone, false
}

// Screen is the named point in the login/enrollment flow the controller is
// currently resolving. Every attempt is always at exactly one screen.
type Screen uint8

const (
	// ScreenNone is the invalid zero screen. A context is never left here.
	ScreenNone Screen = iota
	// ScreenPreSet resolves which factor to challenge without user interaction.
	ScreenPreSet
	// ScreenChooseMethod lets the user pick a factor from those available.
	ScreenChooseMethod
	// ScreenSendAuthRequest issues a challenge and awaits the response.
	ScreenSendAuthRequest
	// ScreenIdentification verifies a code for an already-initiated exchange.
	ScreenIdentification
	// ScreenRegistration is the self-service onboarding wizard shell.
	ScreenRegistration
	// ScreenInvitation is the administrative-invitation onboarding shell.
	ScreenInvitation
	// ScreenActivation re-enables a disabled-but-registered account.
	ScreenActivation
	// ScreenManageOptions gates entry into the self-service menu.
	ScreenManageOptions
	// ScreenSelectOptions is the authenticated self-service menu.
	ScreenSelectOptions
	// ScreenChangePassword is the optional credential-store password change.
	ScreenChangePassword
	// ScreenBypass is the terminal "no further factor needed" waypoint.
	ScreenBypass
	// ScreenLocking is the terminal or quasi-terminal error waypoint.
	ScreenLocking
	// ScreenSendAdministrativeRequest runs the out-of-band admin provisioning handshake.
	ScreenSendAdministrativeRequest
	// ScreenSendKeyRequest requests out-of-band provisioning of a new OTP key.
	ScreenSendKeyRequest
	// ScreenEnrollOTP is the OTP enrollment wizard.
	ScreenEnrollOTP
	// ScreenEnrollEmail is the email enrollment wizard.
	ScreenEnrollEmail
	// ScreenEnrollPhone is the phone enrollment wizard.
	ScreenEnrollPhone
	// ScreenEnrollBiometrics is the biometric enrollment wizard.
	ScreenEnrollBiometrics
	// ScreenEnrollPin is the PIN enrollment wizard.
	ScreenEnrollPin
	// ScreenDefinitiveError marks a Locking context as unrecoverable when
	// stored in TargetOnError.
	ScreenDefinitiveError

	screenCount
)

var screenNames = [screenCount]string{
	"none",
	"preset",
	"choose_method",
	"send_auth_request",
	"identification",
	"registration",
	"invitation",
	"activation",
	"manage_options",
	"select_options",
	"change_password",
	"bypass",
	"locking",
	"send_administrative_request",
	"send_key_request",
	"enroll_otp",
	"enroll_email",
	"enroll_phone",
	"enroll_biometrics",
	"enroll_pin",
	"definitive_error",
}

func (s Screen) String() string {
	if s < screenCount {
		return screenNames[s]
	}
	return "unknown"
}

// IsEnrollment reports whether s is one of the enrollment wizard screens.
func (s Screen) IsEnrollment() bool {
	switch s {
	case ScreenEnrollOTP, ScreenEnrollEmail, ScreenEnrollPhone,
		ScreenEnrollBiometrics, ScreenEnrollPin:
		return true
	}
	return false
}

// Flow remembers which outer flow launched an enrollment wizard so the
// wizard can return control correctly on completion or cancel.
type Flow uint8

const (
	// FlowNone means no wizard is active.
	FlowNone Flow = iota
	// FlowRegistration is the fresh self-registration shell.
	FlowRegistration
	// FlowInvitation is the administrative-invitation shell.
	FlowInvitation
	// FlowManageOptions is the ad-hoc self-service menu.
	FlowManageOptions
	// FlowDirectWizard is a wizard launched outside any shell.
	FlowDirectWizard
	// FlowForceWizard is forced enrollment of the preferred-but-unenrolled factor.
	FlowForceWizard

	flowCount
)

var flowNames = [flowCount]string{
	"none",
	"registration",
	"invitation",
	"manage_options",
	"direct_wizard",
	"force_wizard",
}

func (f Flow) String() string {
	if f < flowCount {
		return flowNames[f]
	}
	return "unknown"
}

// Step is the sub-step inside the active enrollment wizard.
type Step uint8

const (
	// StepNone means no wizard step is active.
	StepNone Step = iota
	// StepCapture collects the factor-specific parameter.
	StepCapture
	// StepPending fires the out-of-band send or ceremony.
	StepPending
	// StepVerify compares the submitted code against the backend result.
	StepVerify
	// StepSuccess acknowledges a completed enrollment.
	StepSuccess
	// StepFailure reports an unrecoverable enrollment failure.
	StepFailure
	// StepManage is the biometric credential-management sub-step.
	StepManage

	stepCount
)

var stepNames = [stepCount]string{
	"none", "capture", "pending", "verify", "success", "failure", "manage",
}

func (s Step) String() string {
	if s < stepCount {
		return stepNames[s]
	}
	return "unknown"
}

// Context is the mutable per-attempt record threaded through every
// controller call. It is rehydrated from host-opaque storage on each
// postback and never kept live in process memory between calls.
//
// Invariant: Screen is never ScreenNone after classification; every code
// path that short-circuits with an error either parks the context at
// ScreenLocking with Locked set, or at an explicit recoverable screen.
type Context struct {
	// AttemptID uniquely identifies this authentication attempt.
	AttemptID string
	// Identity is the verified primary-authentication principal name.
	// Immutable for the attempt.
	Identity string

	Screen        Screen
	TargetOnError Screen
	Flow          Flow
	Step          Step

	// RetryCount is incremented on every user-attributable verification
	// failure and compared against the configured maximum.
	RetryCount int
	// StartedAt is the unix timestamp of classification, compared against
	// the configured delivery window to expire stale challenges.
	StartedAt int64

	// Selected is the factor in use for this attempt; FirstChoice is the
	// one the user nominally prefers.
	Selected    Factor
	FirstChoice Factor

	// PendingPayload is an opaque challenge payload (e.g. serialized
	// WebAuthn options) kept for one challenge/response round trip.
	PendingPayload string

	// Candidate fields hold not-yet-verified enrollment input. They are
	// rolled back to the persisted values when verification fails.
	CandidateEmail string
	CandidatePhone string
	CandidatePIN   string
	CandidateKey   string

	// PinDone records that the PIN gate passed for this attempt.
	PinDone bool

	// Enabled and Registered mirror the persisted user record, cached for
	// the attempt at classification time.
	Enabled    bool
	Registered bool

	// Locked marks the attempt as terminally failed.
	Locked bool

	// SkipMask records per-factor "skip" clicks inside a registration shell.
	SkipMask uint16

	// Message is the recoverable message to re-render with the current screen.
	Message string
}

// Skipped reports whether f was skipped inside the active registration shell.
func (c *Context) Skipped(f Factor) bool {
	return c.SkipMask&(1<<uint16(f)) != 0
}

// MarkSkipped records a registration-shell skip for f.
func (c *Context) MarkSkipped(f Factor) {
	c.SkipMask |= 1 << uint16(f)
}

// ResetWizard clears all wizard-scoped state, including candidates.
func (c *Context) ResetWizard() {
	c.Flow = FlowNone
	c.Step = StepNone
	c.PendingPayload = ""
	c.CandidateEmail = ""
	c.CandidatePhone = ""
	c.CandidatePIN = ""
	c.CandidateKey = ""
}
