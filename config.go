package authgate

import (
	"errors"
	"time"

	"github.com/spf13/viper"

	"github.com/authgate/authgate/password"
)

// Config is the full engine configuration. Zero values are filled in
// from [DefaultConfig] by the builder; the one setting with no default
// is the JWT signing secret: building without it fails, it never falls
// back.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password password.Params
	Store    StoreConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig configures the access-token codec.
type JWTConfig struct {
	// Secret signs and verifies access tokens. Required.
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	// Leeway is the verification clock-skew tolerance. Zero = strict.
	Leeway time.Duration
}

// RefreshConfig configures the refresh-token manager.
type RefreshConfig struct {
	TTL time.Duration
}

// StoreConfig configures the bundled Redis store.
type StoreConfig struct {
	KeyPrefix string
	// OpTimeout bounds every store call; a timed-out call surfaces as
	// ErrStoreUnavailable.
	OpTimeout time.Duration
}

// SecurityConfig holds the hardening toggles.
type SecurityConfig struct {
	// ReuseDetection tombstones rotated refresh tokens so a replayed
	// token is recognized as reuse (possible theft) rather than noise.
	ReuseDetection bool
	// RevokeOnReuse additionally revokes the identity's entire token
	// chain when reuse is detected.
	RevokeOnReuse bool

	// LoginThrottle enables fixed-window failed-login limiting.
	LoginThrottle    bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	ThrottlePerIP    bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 15 minute access
// tokens, 15 day refresh tokens, reuse detection on, throttling off.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "authgate",
		},
		Refresh: RefreshConfig{
			TTL: 15 * 24 * time.Hour,
		},
		Password: password.DefaultParams(),
		Store: StoreConfig{
			KeyPrefix: "ag",
			OpTimeout: 3 * time.Second,
		},
		Security: SecurityConfig{
			ReuseDetection:   true,
			MaxLoginAttempts: 10,
			LoginCooldown:    5 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) == 0 {
		return errors.New("config: JWT secret is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("config: access TTL must be positive")
	}
	if c.Refresh.TTL <= 0 {
		return errors.New("config: refresh TTL must be positive")
	}
	if c.Security.LoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("config: login throttle requires MaxLoginAttempts > 0")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("config: login throttle requires a positive cooldown")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	return out
}

// LoadConfig builds a Config from the environment (and an optional .env
// file in the working directory), on top of [DefaultConfig]:
//
//	AUTHGATE_JWT_SECRET     signing secret (required downstream, no default)
//	AUTHGATE_ACCESS_TTL     access token lifetime (default 15m)
//	AUTHGATE_REFRESH_TTL    refresh token lifetime (default 360h)
//	AUTHGATE_ISSUER         iss claim (default "authgate")
//	AUTHGATE_REDIS_PREFIX   store key prefix (default "ag")
//
// A missing secret is not an error here; [Builder.Build] is the
// startup gate that fails on it.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine (CI, production)

	v.AutomaticEnv()

	v.SetDefault("AUTHGATE_JWT_SECRET", "")
	v.SetDefault("AUTHGATE_ACCESS_TTL", "15m")
	v.SetDefault("AUTHGATE_REFRESH_TTL", "360h")
	v.SetDefault("AUTHGATE_ISSUER", "authgate")
	v.SetDefault("AUTHGATE_REDIS_PREFIX", "ag")

	cfg := DefaultConfig()
	if secret := v.GetString("AUTHGATE_JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = []byte(secret)
	}
	if ttl, err := time.ParseDuration(v.GetString("AUTHGATE_ACCESS_TTL")); err == nil && ttl > 0 {
		cfg.JWT.AccessTTL = ttl
	}
	if ttl, err := time.ParseDuration(v.GetString("AUTHGATE_REFRESH_TTL")); err == nil && ttl > 0 {
		cfg.Refresh.TTL = ttl
	}
	cfg.JWT.Issuer = v.GetString("AUTHGATE_ISSUER")
	cfg.Store.KeyPrefix = v.GetString("AUTHGATE_REDIS_PREFIX")

	return cfg, nil
}
