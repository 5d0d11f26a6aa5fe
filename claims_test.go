package adfsmfa

import (
	"testing"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

func TestAuthMethodURITotal(t *testing.T) {
	tests := []struct {
		factor session.Factor
		want   string
	}{
		{session.FactorOTP, MethodOTP},
		{session.FactorEmail, MethodEmail},
		{session.FactorPhone, MethodSMS},
		{session.FactorBiometric, MethodBiometric},
		{session.FactorPIN, MethodPIN},
		{session.FactorAzure, MethodAzure},
		{session.FactorNone, MethodNone},
		{session.FactorChoose, MethodNone},
		{session.Factor(200), MethodNone},
	}
	for _, tc := range tests {
		if got := AuthMethodURI(tc.factor); got != tc.want {
			t.Errorf("AuthMethodURI(%s) = %q, want %q", tc.factor, got, tc.want)
		}
	}
}

// Claims carry a verifiable step-up token when issuance is configured.
func TestConcludeIssuesStepUpToken(t *testing.T) {
	priv, pub := stepUpTestKeys(t)
	user := enabledUser("alice", session.FactorOTP)
	engine, _ := newTestEngine(t, newFakeRepo(user), func(cfg *Config, b *Builder) {
		cfg.Token.Enabled = true
		cfg.Token.TTL = time.Minute
		cfg.Token.PrivateKey = priv
		cfg.Token.PublicKey = pub
		cfg.Token.Issuer = "adfsmfa-test"
	})

	sc := startChallenge(t, engine)
	result := advanceFields(t, engine, sc, map[string]string{"code": "123456"})
	if result.Claims == nil {
		t.Fatal("expected claims")
	}
	if result.Claims.Token == "" {
		t.Fatal("no token issued")
	}
	parsed, err := engine.tokens.ParseStepUp(result.Claims.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if parsed.Subject != "alice" {
		t.Fatalf("token subject = %q", parsed.Subject)
	}
	if parsed.Factor != "otp" {
		t.Fatalf("token factor = %q", parsed.Factor)
	}
	if parsed.Method != MethodOTP {
		t.Fatalf("token method = %q", parsed.Method)
	}
	if result.Claims.IssuedAt.IsZero() {
		t.Fatal("claims missing issue time")
	}
}
