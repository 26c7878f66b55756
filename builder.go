package pairAuth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/pairAuth/internal/flows"
	"github.com/MrEthical07/pairAuth/jwt"
	"github.com/MrEthical07/pairAuth/password"
)

// dummyHasher is implemented by hashers that can produce a never-matching hash for
// equalizing login cost on unknown emails.
type dummyHasher interface {
	DummyHash() (string, error)
}

var (
	_ dummyHasher      = (*password.Argon2)(nil)
	_ PasswordUpgrader = (*password.Argon2)(nil)
)

// Builder assembles an Engine. A Builder may be used for exactly one Build.
type Builder struct {
	config Config

	userProvider UserProvider
	hasher       PasswordHasher
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecrets sets both signing secrets. The slices are copied.
func (b *Builder) WithSecrets(access, refresh []byte) *Builder {
	b.config.Token.AccessSecret = cloneBytes(access)
	b.config.Token.RefreshSecret = cloneBytes(refresh)
	return b
}

// WithUserProvider enables Register, Login, Profile and UpdateProfile. Without it the
// engine only issues and authenticates tokens.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordHasher overrides the argon2id hasher derived from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a logger that discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock injects the time source used for iat, exp and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = discardLogger()
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.Token.AccessSecret),
		RefreshSecret: cloneBytes(cfg.Token.RefreshSecret),
		Issuer:        cfg.Token.Issuer,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		jwtManager:   jm,
		userProvider: b.userProvider,
		logger:       logger,
		now:          now,
	}
	engine.metrics = NewMetrics(cfg.Metrics)

	deps := flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			DecodeAccess:  engine.decodeFlowIdentity(jwt.KindAccess),
			DecodeRefresh: engine.decodeFlowIdentity(jwt.KindRefresh),
			IssueAccess:   engine.issueFlowAccess,
		},
	}

	if b.userProvider != nil {
		hasher := b.hasher
		if hasher == nil {
			ph, err := password.NewArgon2(password.Config{
				Memory:      cfg.Password.Memory,
				Time:        cfg.Password.Time,
				Parallelism: cfg.Password.Parallelism,
				SaltLength:  cfg.Password.SaltLength,
				KeyLength:   cfg.Password.KeyLength,
				MinLength:   cfg.Password.MinLength,
			})
			if err != nil {
				return nil, err
			}
			hasher = ph
		}

		var dummyHash string
		if dh, ok := hasher.(dummyHasher); ok {
			dummyHash, err = dh.DummyHash()
			if err != nil {
				return nil, fmt.Errorf("derive dummy hash: %w", err)
			}
		}
		engine.passwordHash = hasher
		deps.Account = engine.buildAccountDeps(dummyHash)
	}

	engine.flows = flows.New(deps)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true

	return engine, nil
}
