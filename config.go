package adfsmfa

import (
	"errors"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// EnrollmentMode selects the tenant policy branch applied to identities
// that have no registration record yet.
type EnrollmentMode uint8

const (
	// EnrollmentAdministrative locks out unregistered users; only an
	// administrator can create records.
	EnrollmentAdministrative EnrollmentMode = iota
	// EnrollmentInvitation routes unregistered users into the
	// administrative-invitation wizard.
	EnrollmentInvitation
	// EnrollmentManaged advertises the invitation wizard during the
	// advertising window and bypasses outside it.
	EnrollmentManaged
	// EnrollmentRequired always routes unregistered users into
	// self-registration.
	EnrollmentRequired
	// EnrollmentAllowed advertises self-registration during the
	// advertising window and bypasses outside it.
	EnrollmentAllowed
	// EnrollmentOptional bypasses unregistered users unconditionally.
	EnrollmentOptional
)

// Config carries the whole tenant policy of one engine instance.
// Reload events are handled by constructing a new Engine, never by mutating
// a Config shared with a running one.
type Config struct {
	Policy    PolicyConfig
	Retry     RetryConfig
	OTP       FactorConfig
	Email     FactorConfig
	Phone     FactorConfig
	Biometric FactorConfig
	Azure     FactorConfig
	PIN       PinConfig
	Password  PasswordConfig
	Lockout   LockoutConfig
	Token     TokenConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// PolicyConfig carries the tenant enrollment and enforcement policy.
type PolicyConfig struct {
	Enrollment EnrollmentMode
	// MFARequired makes a second factor mandatory: registered-but-disabled
	// users and failed administrative handshakes lock instead of bypassing.
	MFARequired bool
	// AllowSelfManage lets registered users run enrollment wizards and the
	// options menu themselves.
	AllowSelfManage bool
	// AllowDisable lets users switch MFA off from the options menu.
	AllowDisable bool
	// RememberChoice persists the factor picked on the choose-method
	// screen as the user's preferred method.
	RememberChoice bool
	// AdvertisingStart and AdvertisingEnd bound the enrollment advertising
	// window. Zero values leave the window always open on that side.
	AdvertisingStart time.Time
	AdvertisingEnd   time.Time
}

// RetryConfig bounds the shared retry/lockout budget of one attempt.
type RetryConfig struct {
	// MaxRetries is the number of user-attributable verification failures
	// tolerated before the attempt locks. Minimum 1.
	MaxRetries int
	// DeliveryWindow is the time budget within which an issued challenge
	// must be answered. Minimum 1s.
	DeliveryWindow time.Duration
}

// FactorConfig is the per-factor capability policy.
type FactorConfig struct {
	Enabled bool
	// Required factors must be enrolled before a registration shell can
	// complete; they can never be skipped.
	Required bool
	// WizardEnabled exposes the factor's enrollment wizard.
	WizardEnabled bool
	// ForceEnrollment routes a user into enrolling this factor right after
	// a successful login with a different factor, when it is their first
	// choice but not yet enrolled.
	ForceEnrollment bool
	// RequirePIN gates this factor's verification behind the numeric PIN.
	RequirePIN bool
}

// PinConfig is the PIN factor policy.
type PinConfig struct {
	Enabled       bool
	Required      bool
	WizardEnabled bool
	MinLength     int
	MaxLength     int
}

// PasswordConfig toggles the optional credential-store password change and
// sets the argon2id parameters used for PIN hashing.
type PasswordConfig struct {
	ChangeEnabled bool

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// LockoutConfig drives the Redis-backed cross-attempt identity lockout.
type LockoutConfig struct {
	Enabled bool
	// Threshold is the number of consecutive terminal locks after which a
	// fresh attempt is refused until Cooldown elapses.
	Threshold int
	Cooldown  time.Duration
	KeyPrefix string
}

// TokenConfig drives optional step-up token issuance on final success.
type TokenConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	// Dropped events are counted and reported by [Engine.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the Advance latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration a [Builder] starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Policy: PolicyConfig{
			Enrollment:      EnrollmentAllowed,
			AllowSelfManage: true,
			RememberChoice:  true,
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			DeliveryWindow: 5 * time.Minute,
		},
		OTP: FactorConfig{
			Enabled:       true,
			Required:      true,
			WizardEnabled: true,
		},
		Email: FactorConfig{
			Enabled:       true,
			WizardEnabled: true,
		},
		Phone: FactorConfig{
			Enabled:       true,
			WizardEnabled: true,
		},
		Biometric: FactorConfig{
			WizardEnabled: true,
		},
		PIN: PinConfig{
			WizardEnabled: true,
			MinLength:     4,
			MaxLength:     8,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: LockoutConfig{
			Threshold: 3,
			Cooldown:  15 * time.Minute,
			KeyPrefix: "aml",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Token.PrivateKey != nil {
		out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	}
	if cfg.Token.PublicKey != nil {
		out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)
	}
	return out
}

// factorConfig resolves the capability policy for f. The PIN factor's
// PinConfig is projected onto the common FactorConfig shape.
func (c *Config) factorConfig(f session.Factor) FactorConfig {
	switch f {
	case session.FactorOTP:
		return c.OTP
	case session.FactorEmail:
		return c.Email
	case session.FactorPhone:
		return c.Phone
	case session.FactorBiometric:
		return c.Biometric
	case session.FactorAzure:
		return c.Azure
	case session.FactorPIN:
		return FactorConfig{
			Enabled:       c.PIN.Enabled,
			Required:      c.PIN.Required,
			WizardEnabled: c.PIN.WizardEnabled,
		}
	default:
		return FactorConfig{}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Retry.MaxRetries < 1 {
		return errors.New("config: Retry.MaxRetries must be >= 1")
	}
	if cfg.Retry.DeliveryWindow < time.Second {
		return errors.New("config: Retry.DeliveryWindow must be >= 1s")
	}
	if cfg.PIN.MinLength < 4 || cfg.PIN.MaxLength < cfg.PIN.MinLength {
		return errors.New("config: invalid PIN length bounds")
	}
	if !cfg.Policy.AdvertisingStart.IsZero() && !cfg.Policy.AdvertisingEnd.IsZero() &&
		cfg.Policy.AdvertisingEnd.Before(cfg.Policy.AdvertisingStart) {
		return errors.New("config: advertising window ends before it starts")
	}
	for _, f := range []session.Factor{
		session.FactorOTP, session.FactorEmail, session.FactorPhone,
		session.FactorBiometric, session.FactorPIN, session.FactorAzure,
	} {
		fc := cfg.factorConfig(f)
		if fc.Required && !fc.Enabled {
			return errors.New("config: factor " + f.String() + " is required but not enabled")
		}
		if fc.RequirePIN && !cfg.PIN.Enabled {
			return errors.New("config: factor " + f.String() + " requires a PIN but the PIN factor is disabled")
		}
	}
	if cfg.Lockout.Enabled {
		if cfg.Lockout.Threshold < 1 {
			return errors.New("config: Lockout.Threshold must be >= 1")
		}
		if cfg.Lockout.Cooldown <= 0 {
			return errors.New("config: Lockout.Cooldown must be positive")
		}
	}
	if cfg.Token.Enabled && cfg.Token.TTL <= 0 {
		return errors.New("config: Token.TTL must be positive when token issuance is enabled")
	}
	return nil
}

// advertisingActive reports whether the enrollment advertising window is
// open at now.
func (p *PolicyConfig) advertisingActive(now time.Time) bool {
	if !p.AdvertisingStart.IsZero() && now.Before(p.AdvertisingStart) {
		return false
	}
	if !p.AdvertisingEnd.IsZero() && now.After(p.AdvertisingEnd) {
		return false
	}
	return true
}
