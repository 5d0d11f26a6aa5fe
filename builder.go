package adfsmfa

import (
	"errors"
	"time"

	"github.com/neos-sdi/adfsmfa-sub013/jwt"
	"github.com/neos-sdi/adfsmfa-sub013/password"
	"github.com/neos-sdi/adfsmfa-sub013/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine] from configuration and collaborators.
//
// Builder instances are intended to be configured during initialization and
// then discarded; a builder cannot be reused after Build.
type Builder struct {
	config Config
	redis  *redis.Client

	repo      UserRepository
	backends  map[session.Factor]FactorBackend
	presenter Presenter
	passwords PasswordManager
	relay     AdminRelay
	auditSink AuditSink

	built bool
}

// New returns a builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config:   defaultConfig(),
		backends: make(map[session.Factor]FactorBackend),
	}
}

// WithConfig replaces the configuration. The value is cloned; later
// mutations of cfg do not affect the builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis attaches the Redis client used by the context store and the
// identity lockout limiter.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithRepository attaches the host's registration record repository.
func (b *Builder) WithRepository(repo UserRepository) *Builder {
	b.repo = repo
	return b
}

// WithBackend registers a factor backend under its own Kind. Registering a
// second backend for the same factor replaces the first.
func (b *Builder) WithBackend(backend FactorBackend) *Builder {
	if backend != nil {
		b.backends[backend.Kind()] = backend
	}
	return b
}

// WithPresenter attaches the optional HTML presenter.
func (b *Builder) WithPresenter(p Presenter) *Builder {
	b.presenter = p
	return b
}

// WithPasswordManager attaches the optional credential-store password
// manager.
func (b *Builder) WithPasswordManager(pm PasswordManager) *Builder {
	b.passwords = pm
	return b
}

// WithAdminRelay attaches the out-of-band administrative provisioning
// channel.
func (b *Builder) WithAdminRelay(r AdminRelay) *Builder {
	b.relay = r
	return b
}

// WithAuditSink attaches the audit sink and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Advance latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration against the registered collaborators
// and returns the immutable engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	if b.repo == nil {
		return nil, errors.New("user repository required")
	}
	if b.redis == nil {
		if cfg.Lockout.Enabled {
			return nil, errors.New("identity lockout requires redis client")
		}
	}

	registry := newCapabilityRegistry(cfg, b.backends)
	for _, f := range registry.requiredFactors() {
		if registry.backend(f) == nil {
			return nil, errors.New("required factor " + f.String() + " has no backend")
		}
	}

	engine := &Engine{
		config:    cfg,
		registry:  registry,
		repo:      b.repo,
		presenter: b.presenter,
		passwords: b.passwords,
		relay:     b.relay,
		clock:     time.Now,
	}

	if b.redis != nil {
		engine.contextStore = session.NewStore(b.redis, "")
		engine.lockout = newLockoutLimiter(b.redis, cfg.Lockout)
	}

	engine.pinHasher = password.NewArgon2(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})

	if cfg.Token.Enabled {
		manager, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.Token.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    cfg.Token.PrivateKey,
			PublicKey:     cfg.Token.PublicKey,
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
		})
		if err != nil {
			return nil, err
		}
		engine.tokens = manager
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	if cfg.Metrics.Enabled {
		engine.metrics = NewMetrics(cfg.Metrics)
	}

	b.built = true
	return engine, nil
}
