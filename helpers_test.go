package adfsmfa

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/session"
)

// fakeRepo is an in-memory UserRepository with injectable failures.
type fakeRepo struct {
	mu       sync.Mutex
	users    map[string]*RegisteredUser
	loadErr  error
	saveErr  error
	saves    int
	enables  int
	removals []string
}

func newFakeRepo(users ...*RegisteredUser) *fakeRepo {
	r := &fakeRepo{users: make(map[string]*RegisteredUser)}
	for _, u := range users {
		r.users[u.Identity] = u.Clone()
	}
	return r
}

func (r *fakeRepo) Load(ctx context.Context, identity string) (*RegisteredUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.users[identity].Clone(), nil
}

func (r *fakeRepo) Save(ctx context.Context, user *RegisteredUser, regenerateKey bool) (*RegisteredUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.saves++
	saved := user.Clone()
	if regenerateKey {
		saved.KeyHandle = "regenerated-key"
	}
	r.users[user.Identity] = saved
	return saved.Clone(), nil
}

func (r *fakeRepo) Enable(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enables++
	if u, ok := r.users[identity]; ok {
		u.Enabled = true
	}
	return nil
}

func (r *fakeRepo) RemoveCredential(ctx context.Context, identity, credentialID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removals = append(r.removals, credentialID)
	return nil
}

func (r *fakeRepo) get(identity string) *RegisteredUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[identity].Clone()
}

// fakeBackend is a scriptable FactorBackend.
type fakeBackend struct {
	kind session.Factor
	mode DeliveryMode

	issueResult  ResultCode
	issuePayload string
	issueErr     error
	issued       int

	verifyResult ResultCode
	verifyErr    error
	verifyDelay  time.Duration
	verified     []string

	available   func(user *RegisteredUser) bool
	credentials []CredentialInfo
}

func newFakeBackend(kind session.Factor, mode DeliveryMode) *fakeBackend {
	return &fakeBackend{
		kind:         kind,
		mode:         mode,
		issueResult:  ResultSuccess,
		verifyResult: ResultSuccess,
	}
}

func (b *fakeBackend) Kind() session.Factor { return b.kind }
func (b *fakeBackend) Mode() DeliveryMode   { return b.mode }

func (b *fakeBackend) IssueChallenge(ctx context.Context, sc *session.Context, user *RegisteredUser) (Challenge, error) {
	b.issued++
	if b.issueErr != nil {
		return Challenge{Code: ResultError}, b.issueErr
	}
	if sc != nil && sc.Screen.IsEnrollment() && b.kind == session.FactorOTP {
		sc.CandidateKey = "fresh-otp-secret"
	}
	return Challenge{Payload: b.issuePayload, Code: b.issueResult}, nil
}

func (b *fakeBackend) VerifyResponse(ctx context.Context, sc *session.Context, user *RegisteredUser, response string) (ResultCode, error) {
	if b.verifyDelay > 0 {
		time.Sleep(b.verifyDelay)
	}
	b.verified = append(b.verified, response)
	if b.verifyErr != nil {
		return ResultError, b.verifyErr
	}
	return b.verifyResult, nil
}

func (b *fakeBackend) IsAvailable(ctx context.Context, sc *session.Context, user *RegisteredUser) bool {
	if b.available != nil {
		return b.available(user)
	}
	return true
}

func (b *fakeBackend) ListCredentials(ctx context.Context, identity string) ([]CredentialInfo, error) {
	return b.credentials, nil
}

// fakeRelay records administrative requests.
type fakeRelay struct {
	enrollResult ResultCode
	keyResult    ResultCode
	enrollCalls  int
	keyCalls     int
}

func (r *fakeRelay) SendEnrollmentRequest(ctx context.Context, user *RegisteredUser) (ResultCode, error) {
	r.enrollCalls++
	return r.enrollResult, nil
}

func (r *fakeRelay) SendKeyRequest(ctx context.Context, user *RegisteredUser) (ResultCode, error) {
	r.keyCalls++
	return r.keyResult, nil
}

// fakePresenter renders the screen name and counts calls.
type fakePresenter struct {
	err      error
	rendered int
}

func (p *fakePresenter) Render(sc *session.Context) (string, error) {
	p.rendered++
	if p.err != nil {
		return "", p.err
	}
	return "<div>" + sc.Screen.String() + "</div>", nil
}

// fakePasswords scripts the credential-store password change.
type fakePasswords struct {
	err     error
	changes int
}

func (p *fakePasswords) ChangePassword(ctx context.Context, identity, oldPassword, newPassword string) error {
	p.changes++
	return p.err
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Retry.MaxRetries = 3
	cfg.Retry.DeliveryWindow = 5 * time.Minute
	return cfg
}

// newTestEngine builds an engine around a fake repo and one two-way OTP
// backend, no Redis. Callers mutate cfg through the mutator before Build.
func newTestEngine(t *testing.T, repo *fakeRepo, mutate func(cfg *Config, b *Builder)) (*Engine, *fakeBackend) {
	t.Helper()

	cfg := testConfig()
	backend := newFakeBackend(session.FactorOTP, ModeTwoWay)

	builder := New().WithRepository(repo).WithBackend(backend)
	if mutate != nil {
		mutate(&cfg, builder)
	}
	engine, err := builder.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, backend
}

func enabledUser(identity string, preferred session.Factor) *RegisteredUser {
	return &RegisteredUser{
		Identity:        identity,
		PreferredMethod: preferred,
		KeyHandle:       "stored-otp-secret",
		Enabled:         true,
	}
}

func advanceFields(t *testing.T, e *Engine, sc *session.Context, fields map[string]string) *Result {
	t.Helper()
	result, err := e.Advance(context.Background(), sc, fields)
	if err != nil {
		t.Fatalf("advance at %s: %v", sc.Screen, err)
	}
	return result
}

func wantScreen(t *testing.T, got *Result, want session.Screen) {
	t.Helper()
	if got.Presentation == nil {
		t.Fatalf("expected presentation for screen %s, got claims", want)
	}
	if got.Presentation.Screen != want {
		t.Fatalf("screen = %s, want %s (message %q)", got.Presentation.Screen, want, got.Presentation.Message)
	}
}

func stepUpTestKeys(t *testing.T) (priv, pub []byte) {
	t.Helper()
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return privKey, pubKey
}

var errBoom = errors.New("boom")
