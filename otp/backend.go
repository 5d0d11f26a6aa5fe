// Package otp is the built-in time-based one-time-password factor backend:
// RFC 6238 verification with a configurable skew window, secret generation,
// and otpauth:// provisioning URIs. It is registered like any host-supplied
// backend and stores the base32 secret in the registration record's key
// handle.
package otp

import (
	"context"
	"encoding/base32"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	adfsmfa "github.com/neos-sdi/adfsmfa-sub013"
	"github.com/neos-sdi/adfsmfa-sub013/internal"
	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// Config tunes code generation and verification.
type Config struct {
	Issuer string
	// Period is the time step in seconds. Default 30.
	Period int
	// Digits is the code length. Default 6.
	Digits int
	// Skew is the number of periods accepted either side of now.
	Skew int
	// Algorithm is SHA1 (default), SHA256, or SHA512.
	Algorithm string
}

// Backend implements the TOTP factor. It is stateless; secrets travel in
// the session context during enrollment and in the registration record
// afterwards.
type Backend struct {
	config Config
	now    func() time.Time
}

// New returns a backend with cfg defaults filled in.
func New(cfg Config) *Backend {
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "adfsmfa"
	}
	return &Backend{config: cfg, now: time.Now}
}

func (b *Backend) Kind() session.Factor       { return session.FactorOTP }
func (b *Backend) Mode() adfsmfa.DeliveryMode { return adfsmfa.ModeTwoWay }

// IssueChallenge generates a fresh secret during enrollment capture and
// returns its provisioning URI. For login there is nothing to send; the
// code lives in the user's authenticator app.
func (b *Backend) IssueChallenge(ctx context.Context, sc *session.Context, user *adfsmfa.RegisteredUser) (adfsmfa.Challenge, error) {
	if sc != nil && sc.Screen.IsEnrollment() {
		secret, err := internal.NewSecret(20)
		if err != nil {
			return adfsmfa.Challenge{Code: adfsmfa.ResultError}, err
		}
		sc.CandidateKey = secret
		return adfsmfa.Challenge{
			Payload: b.provisionURI(secret, sc.Identity),
			Code:    adfsmfa.ResultSuccess,
		}, nil
	}
	return adfsmfa.Challenge{Code: adfsmfa.ResultSuccess}, nil
}

// VerifyResponse checks a submitted code against the enrollment candidate
// secret or the persisted key handle.
func (b *Backend) VerifyResponse(ctx context.Context, sc *session.Context, user *adfsmfa.RegisteredUser, response string) (adfsmfa.ResultCode, error) {
	secret := ""
	if sc != nil && sc.Screen.IsEnrollment() {
		secret = sc.CandidateKey
	} else if user != nil {
		secret = user.KeyHandle
	}
	if secret == "" {
		return adfsmfa.ResultError, errors.New("no totp secret available")
	}

	raw, err := decodeSecret(secret)
	if err != nil {
		return adfsmfa.ResultError, err
	}
	ok, err := b.verifyCode(raw, response, b.now())
	if err != nil {
		return adfsmfa.ResultError, err
	}
	if !ok {
		return adfsmfa.ResultDenied, nil
	}
	return adfsmfa.ResultSuccess, nil
}

// IsAvailable reports true during enrollment (a secret can always be
// minted) and, for login, only when the user has a provisioned key.
func (b *Backend) IsAvailable(ctx context.Context, sc *session.Context, user *adfsmfa.RegisteredUser) bool {
	if sc != nil && sc.Screen.IsEnrollment() {
		return true
	}
	return user != nil && user.KeyHandle != ""
}

func (b *Backend) ListCredentials(ctx context.Context, identity string) ([]adfsmfa.CredentialInfo, error) {
	return nil, nil
}

func (b *Backend) provisionURI(secret, account string) string {
	label := url.PathEscape(b.config.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", b.config.Issuer)
	v.Set("period", strconv.Itoa(b.config.Period))
	v.Set("digits", strconv.Itoa(b.config.Digits))
	v.Set("algorithm", strings.ToUpper(b.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

func decodeSecret(secret string) ([]byte, error) {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	raw, err := enc.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return nil, errors.New("malformed totp secret")
	}
	if len(raw) == 0 {
		return nil, errors.New("empty totp secret")
	}
	return raw, nil
}
