package adfsmfa

import (
	"context"
	"testing"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

func completeOTPWizard(t *testing.T, engine *Engine, backend *fakeBackend, sc *session.Context) {
	t.Helper()
	advanceFields(t, engine, sc, nil) // capture
	advanceFields(t, engine, sc, nil) // pending
	backend.verifyResult = ResultSuccess
	advanceFields(t, engine, sc, map[string]string{"code": "123456"})
	advanceFields(t, engine, sc, nil) // acknowledge success
}

// Full self-registration: the shell walks the required wizard, enables the
// record, and the attempt concludes through Bypass.
func TestRegistrationShellEndToEnd(t *testing.T) {
	repo := newFakeRepo()
	engine, backend := newTestEngine(t, repo, nil)
	sc := startRegistration(t, engine)

	result := advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenEnrollOTP)
	completeOTPWizard(t, engine, backend, sc)

	result = advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenBypass)
	if repo.enables != 1 {
		t.Fatalf("enables = %d, want 1", repo.enables)
	}
	if !sc.Enabled {
		t.Fatal("context not marked enabled")
	}

	final := advanceFields(t, engine, sc, nil)
	if final.Claims == nil {
		t.Fatal("expected claims at bypass")
	}
	if final.Claims.Factor != session.FactorNone {
		t.Fatalf("bypass claims factor = %s, want none", final.Claims.Factor)
	}
	if final.Claims.Method != MethodNone {
		t.Fatalf("bypass claims method = %q", final.Claims.Method)
	}
}

func TestShellRefusesSkippingRequiredFactor(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeRepo(), nil)
	sc := startRegistration(t, engine)

	result := advanceFields(t, engine, sc, map[string]string{"action": "skip", "method": "otp"})
	wantScreen(t, result, session.ScreenRegistration)
	if result.Presentation.Message != msgRequiredFactor {
		t.Fatalf("message = %q", result.Presentation.Message)
	}
	if sc.Skipped(session.FactorOTP) {
		t.Fatal("required factor recorded as skipped")
	}
}

func TestShellSkipsOptionalFactor(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeRepo(), func(cfg *Config, b *Builder) {
		b.WithBackend(newFakeBackend(session.FactorEmail, ModeOutOfBand))
	})
	sc := startRegistration(t, engine)

	advanceFields(t, engine, sc, map[string]string{"action": "skip", "method": "email"})
	if !sc.Skipped(session.FactorEmail) {
		t.Fatal("optional skip not recorded")
	}
	// Skipping email still lands in the required OTP wizard.
	if sc.Screen != session.ScreenEnrollOTP {
		t.Fatalf("screen = %s, want enroll_otp", sc.Screen)
	}
}

func TestShellExplicitEnrollChoice(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeRepo(), func(cfg *Config, b *Builder) {
		b.WithBackend(newFakeBackend(session.FactorEmail, ModeOutOfBand))
	})
	sc := startRegistration(t, engine)

	result := advanceFields(t, engine, sc, map[string]string{"action": "enroll", "method": "email"})
	wantScreen(t, result, session.ScreenEnrollEmail)
	if sc.Flow != session.FlowRegistration {
		t.Fatalf("flow = %s, want registration", sc.Flow)
	}

	// An unknown method re-presents the shell.
	sc.Screen = session.ScreenRegistration
	sc.ResetWizard()
	result = advanceFields(t, engine, sc, map[string]string{"action": "enroll", "method": "carrier-pigeon"})
	wantScreen(t, result, session.ScreenRegistration)
	if result.Presentation.Message != msgPickFactor {
		t.Fatalf("message = %q", result.Presentation.Message)
	}
}

// The invitation shell captures enrollment data like registration but hands
// off to administrative approval instead of self-enabling.
func TestInvitationHandsOffToAdminRequest(t *testing.T) {
	repo := newFakeRepo()
	relay := &fakeRelay{enrollResult: ResultSuccess}
	engine, backend := newTestEngine(t, repo, func(cfg *Config, b *Builder) {
		cfg.Policy.Enrollment = EnrollmentInvitation
		b.WithAdminRelay(relay)
	})

	sc, _, err := engine.StartAttempt(context.Background(), "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sc.Screen != session.ScreenInvitation {
		t.Fatalf("screen = %s, want invitation", sc.Screen)
	}

	advanceFields(t, engine, sc, nil) // launch the required OTP wizard
	completeOTPWizard(t, engine, backend, sc)

	result := advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenSendAdministrativeRequest)
	if repo.enables != 0 {
		t.Fatal("invitation flow enabled the record itself")
	}

	result = advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenBypass)
	if result.Presentation.Message != msgAwaitAdmin {
		t.Fatalf("message = %q", result.Presentation.Message)
	}
	if relay.enrollCalls != 1 {
		t.Fatalf("enrollment requests = %d, want 1", relay.enrollCalls)
	}
}

// Under MFARequired the administrative handshake cannot fall through to
// Bypass: the attempt parks until an administrator approves.
func TestAdminRequestLocksWhenMFARequired(t *testing.T) {
	user := enabledUser("alice", session.FactorOTP)
	user.Enabled = false
	relay := &fakeRelay{enrollResult: ResultSuccess}
	engine, _ := newTestEngine(t, newFakeRepo(user), func(cfg *Config, b *Builder) {
		cfg.Policy.MFARequired = true
		b.WithAdminRelay(relay)
	})

	sc := &session.Context{
		AttemptID:  "att-1",
		Identity:   "alice",
		Registered: true,
		Screen:     session.ScreenSendAdministrativeRequest,
		StartedAt:  engine.now().Unix(),
	}
	result := advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenLocking)
	if !result.Presentation.Terminal {
		t.Fatal("await-admin under MFARequired should be terminal")
	}
	if result.Presentation.Message != msgAwaitAdmin {
		t.Fatalf("message = %q", result.Presentation.Message)
	}
}

func TestAdminRequestWithoutRelayLocks(t *testing.T) {
	user := enabledUser("alice", session.FactorOTP)
	engine, _ := newTestEngine(t, newFakeRepo(user), nil)

	sc := &session.Context{
		AttemptID:  "att-1",
		Identity:   "alice",
		Registered: true,
		Screen:     session.ScreenSendAdministrativeRequest,
		StartedAt:  engine.now().Unix(),
	}
	result := advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenLocking)
	if !result.Presentation.Terminal {
		t.Fatal("missing relay should lock terminally")
	}
}

// A key request regenerates the stored secret and routes back to the menu
// when launched from self-service.
func TestSendKeyRequest(t *testing.T) {
	user := enabledUser("alice", session.FactorOTP)
	repo := newFakeRepo(user)
	relay := &fakeRelay{keyResult: ResultSuccess}
	engine, _ := newTestEngine(t, repo, func(cfg *Config, b *Builder) {
		b.WithAdminRelay(relay)
	})

	sc := &session.Context{
		AttemptID:  "att-1",
		Identity:   "alice",
		Registered: true,
		Enabled:    true,
		Flow:       session.FlowManageOptions,
		Screen:     session.ScreenSendKeyRequest,
		StartedAt:  engine.now().Unix(),
	}
	result := advanceFields(t, engine, sc, nil)
	wantScreen(t, result, session.ScreenSelectOptions)
	if result.Presentation.Message != msgEnrolled {
		t.Fatalf("message = %q", result.Presentation.Message)
	}
	if relay.keyCalls != 1 {
		t.Fatalf("key requests = %d, want 1", relay.keyCalls)
	}
	if got := repo.get("alice").KeyHandle; got != "regenerated-key" {
		t.Fatalf("key handle = %q, want regenerated", got)
	}
}

// The shell's offerable factors shrink as the user enrolls and skips.
func TestEnrollmentChoicesHonorSkipsAndEnrollment(t *testing.T) {
	user := enabledUser("alice", session.FactorOTP)
	engine, _ := newTestEngine(t, newFakeRepo(user), nil)

	sc := &session.Context{
		AttemptID: "att-1",
		Identity:  "alice",
		Screen:    session.ScreenRegistration,
	}

	// OTP is already enrolled via its key handle, leaving email and phone.
	choices, err := engine.EnrollmentChoices(context.Background(), sc)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	want := []session.Factor{session.FactorEmail, session.FactorPhone}
	if len(choices) != len(want) {
		t.Fatalf("choices = %v, want %v", choices, want)
	}
	for i := range want {
		if choices[i] != want[i] {
			t.Fatalf("choices = %v, want %v", choices, want)
		}
	}

	sc.MarkSkipped(session.FactorPhone)
	choices, err = engine.EnrollmentChoices(context.Background(), sc)
	if err != nil {
		t.Fatalf("choices after skip: %v", err)
	}
	if len(choices) != 1 || choices[0] != session.FactorEmail {
		t.Fatalf("choices after skip = %v, want [email]", choices)
	}

	if _, err := engine.EnrollmentChoices(context.Background(), nil); err != ErrContextInvalid {
		t.Fatalf("nil context err = %v, want invalid context", err)
	}
}
