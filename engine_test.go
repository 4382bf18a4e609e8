package authgate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/password"
)

func fastPasswordParams() password.Params {
	return password.Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-secret")
	cfg.Password = fastPasswordParams()
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err, "Build")
	t.Cleanup(engine.Close)

	return engine, mr
}

func register(t *testing.T, e *Engine, email, pw string) *TokenPair {
	t.Helper()
	pair, err := e.Register(context.Background(), RegisterRequest{Email: email, Password: pw})
	require.NoError(t, err, "Register")
	return pair
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	pair := register(t, engine, "alice@example.com", "Passw0rd1")
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Len(t, pair.RefreshToken, 64)

	claims, err := engine.Validate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, []string{"User"}, claims.Roles)
	require.NotEmpty(t, claims.Subject)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	register(t, engine, "  Alice@Example.COM ", "Passw0rd1")

	pair, err := engine.Login(context.Background(), "alice@example.com", "Passw0rd1")
	require.NoError(t, err, "login with normalized email")
	require.NotEmpty(t, pair.AccessToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	register(t, engine, "alice@example.com", "Passw0rd1")

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "OtherPass1",
	})
	require.ErrorIs(t, err, ErrIdentityConflict)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email: "a@b.c", Password: "Passw0rd1", Username: "alice",
	})
	require.NoError(t, err)

	_, err = engine.Register(context.Background(), RegisterRequest{
		Email: "x@y.z", Password: "Passw0rd1", Username: "alice",
	})
	require.ErrorIs(t, err, ErrIdentityConflict)
}

func TestRegisterGeneratesUsername(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	pair := register(t, engine, "alice@example.com", "Passw0rd1")

	claims, err := engine.Validate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(claims.Username, "alice-"),
		"generated username %q should start with the email local-part", claims.Username)
	require.Len(t, claims.Username, len("alice-")+4)
}

func TestRegisterSetsTimestamps(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	pair := register(t, engine, "alice@example.com", "Passw0rd1")
	claims, err := engine.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)

	identity, err := engine.store.IdentityByID(ctx, claims.Subject)
	require.NoError(t, err)
	require.False(t, identity.CreatedAt.IsZero(), "CreatedAt must be set on registration")
	require.False(t, identity.UpdatedAt.IsZero(), "UpdatedAt must be set on registration")
	require.Equal(t, identity.CreatedAt, identity.UpdatedAt)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	cases := []RegisterRequest{
		{Email: "", Password: "Passw0rd1"},
		{Email: "not-an-email", Password: "Passw0rd1"},
		{Email: "a@b.c", Password: ""},
		{Email: "a@b.c", Password: "short"},
	}
	for _, req := range cases {
		_, err := engine.Register(ctx, req)
		require.ErrorIs(t, err, ErrRegistrationInvalid, "request %+v", req)
	}
}

func TestLoginAfterRegister(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	register(t, engine, "alice@example.com", "Passw0rd1")

	pair, err := engine.Login(context.Background(), "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	register(t, engine, "alice@example.com", "Passw0rd1")

	_, err := engine.Login(ctx, "alice@example.com", "WrongPass1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = engine.Login(ctx, "nobody@example.com", "Passw0rd1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginThrottle(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Security.LoginThrottle = true
		cfg.Security.MaxLoginAttempts = 2
		cfg.Security.LoginCooldown = time.Minute
	})
	ctx := context.Background()

	register(t, engine, "alice@example.com", "Passw0rd1")

	for i := 0; i < 2; i++ {
		_, err := engine.Login(ctx, "alice@example.com", "WrongPass1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Budget exhausted: even the correct password is refused now.
	_, err := engine.Login(ctx, "alice@example.com", "Passw0rd1")
	require.ErrorIs(t, err, ErrRateLimited)

	snap := engine.MetricsSnapshot()
	require.Equal(t, uint64(1), snap.Get(MetricLoginRateLimited))
}

func TestLoginThrottleResetsOnSuccess(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Security.LoginThrottle = true
		cfg.Security.MaxLoginAttempts = 3
		cfg.Security.LoginCooldown = time.Minute
	})
	ctx := context.Background()

	register(t, engine, "alice@example.com", "Passw0rd1")

	_, err := engine.Login(ctx, "alice@example.com", "WrongPass1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = engine.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	// The failure counter was cleared by the success.
	for i := 0; i < 2; i++ {
		_, err = engine.Login(ctx, "alice@example.com", "WrongPass1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = engine.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	other, _ := newTestEngine(t, func(cfg *Config) {
		cfg.JWT.Secret = []byte("different-secret")
	})

	pair := register(t, engine, "alice@example.com", "Passw0rd1")

	_, err := other.Validate(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateRejectsExpired(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.JWT.AccessTTL = time.Nanosecond
	})

	pair := register(t, engine, "alice@example.com", "Passw0rd1")
	time.Sleep(10 * time.Millisecond)

	_, err := engine.Validate(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsGarbage(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Validate(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMetricsCounters(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	register(t, engine, "alice@example.com", "Passw0rd1")
	_, err := engine.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)
	_, err = engine.Login(ctx, "alice@example.com", "WrongPass1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	snap := engine.MetricsSnapshot()
	require.Equal(t, uint64(1), snap.Get(MetricRegisterSuccess))
	require.Equal(t, uint64(1), snap.Get(MetricLoginSuccess))
	require.Equal(t, uint64(1), snap.Get(MetricLoginFailure))
	require.Equal(t, uint64(2), snap.Get(MetricSessionCreated))
}

func TestStoreOutageSurfacesAsUnavailable(t *testing.T) {
	engine, mr := newTestEngine(t, nil)
	ctx := context.Background()

	pair := register(t, engine, "alice@example.com", "Passw0rd1")

	mr.SetError("simulated outage")
	defer mr.SetError("")

	_, err := engine.Login(ctx, "alice@example.com", "Passw0rd1")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	err = engine.Logout(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestBuilderRequiresSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.Password = fastPasswordParams()

	_, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	require.Error(t, err, "build without a secret must fail")
}

func TestBuilderRequiresRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("s")
	cfg.Password = fastPasswordParams()

	_, err := New().WithConfig(cfg).Build()
	require.Error(t, err)
}
