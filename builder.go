package authgate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/jwt"
	"github.com/authgate/authgate/password"
	"github.com/authgate/authgate/store"
	"github.com/authgate/authgate/token"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build; no I/O happens before then except the decoy-hash computation.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	credStore store.Store
	auditSink AuditSink
	logger    logging.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the bundled store and the
// login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies a custom credential store, replacing the bundled
// Redis one. The login throttle still needs Redis when enabled.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.credStore = s
	return b
}

// WithAuditSink supplies the sink that receives audit events when
// auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger supplies a structured logger for engine warnings. The
// default discards everything.
func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. It fails on a
// missing JWT secret rather than falling back, so a misconfigured
// process dies at startup instead of signing tokens with a known value.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	credStore := b.credStore
	if credStore == nil {
		if b.redis == nil {
			return nil, errors.New("redis client required")
		}
		credStore = store.NewRedis(b.redis, cfg.Store.KeyPrefix, cfg.Store.OpTimeout)
	}

	var limiter *rate.Limiter
	if cfg.Security.LoginThrottle {
		if b.redis == nil {
			return nil, errors.New("login throttle requires redis client")
		}
		limiter = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.Security.MaxLoginAttempts,
			Cooldown:    cfg.Security.LoginCooldown,
			PerIP:       cfg.Security.ThrottlePerIP,
		})
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, err
	}

	// The decoy hash equalizes the cost of "no such user" and "wrong
	// password" at login.
	decoySeed, err := internal.NewOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	decoyHash, err := hasher.Hash(decoySeed)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		AccessTTL: cfg.JWT.AccessTTL,
		Issuer:    cfg.JWT.Issuer,
		Leeway:    cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Nop{}
	}

	engine := &Engine{
		config:       cfg,
		store:        credStore,
		tokens:       token.NewManager(credStore, cfg.Refresh.TTL),
		jwtManager:   jwtManager,
		passwordHash: hasher,
		decoyHash:    decoyHash,
		limiter:      limiter,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		log:          logger,
	}

	b.built = true
	return engine, nil
}
