package authgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefreshRotatesToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first := register(t, engine, "alice@example.com", "Passw0rd1")

	second, err := engine.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The presented token was consumed by the rotation.
	_, err = engine.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	// The replacement still works.
	_, err = engine.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefreshExpiredToken(t *testing.T) {
	engine, mr := newTestEngine(t, nil)
	ctx := context.Background()

	pair := register(t, engine, "alice@example.com", "Passw0rd1")

	mr.FastForward(16 * 24 * time.Hour)

	_, err := engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefreshExpiredRecordLazyCleanup(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	pair := register(t, engine, "alice@example.com", "Passw0rd1")

	// Advance only the manager's clock: the stored record is intact, so
	// the expiry check itself must reject and then remove it.
	engine.tokens.WithClock(func() time.Time { return time.Now().Add(16 * 24 * time.Hour) })

	_, err := engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	engine.tokens.WithClock(time.Now)
	_, err = engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefreshReuseDetection(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first := register(t, engine, "alice@example.com", "Passw0rd1")

	_, err := engine.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	// Replay of the consumed token is classified as reuse.
	_, err = engine.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	snap := engine.MetricsSnapshot()
	require.Equal(t, uint64(1), snap.Get(MetricRefreshReuseDetected))
}

func TestRefreshReuseRevokesChain(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Security.RevokeOnReuse = true
	})
	ctx := context.Background()

	first := register(t, engine, "alice@example.com", "Passw0rd1")

	second, err := engine.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	// Replaying the consumed token must cut the whole chain: the live
	// successor dies with it.
	_, err = engine.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	_, err = engine.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefreshReuseDetectionDisabled(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Security.ReuseDetection = false
	})
	ctx := context.Background()

	first := register(t, engine, "alice@example.com", "Passw0rd1")

	_, err := engine.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = engine.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	snap := engine.MetricsSnapshot()
	require.Zero(t, snap.Get(MetricRefreshReuseDetected))
	require.Equal(t, uint64(1), snap.Get(MetricRefreshFailure))
}

func TestLogoutRevokesSession(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	pair := register(t, engine, "alice@example.com", "Passw0rd1")

	require.NoError(t, engine.Logout(ctx, pair.RefreshToken))

	require.ErrorIs(t, engine.Logout(ctx, pair.RefreshToken), ErrInvalidSession)
	_, err := engine.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestLogoutUnknownToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	require.ErrorIs(t, engine.Logout(context.Background(), "never-issued"), ErrInvalidSession)
}

func TestLogoutAll(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	pair := register(t, engine, "alice@example.com", "Passw0rd1")
	claims, err := engine.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)

	var sessions []*TokenPair
	sessions = append(sessions, pair)
	for i := 0; i < 2; i++ {
		p, err := engine.Login(ctx, "alice@example.com", "Passw0rd1")
		require.NoError(t, err)
		sessions = append(sessions, p)
	}

	require.NoError(t, engine.LogoutAll(ctx, claims.Subject))

	for _, s := range sessions {
		_, err := engine.Refresh(ctx, s.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidSession)
	}
}

func TestFullSessionLifecycle(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	registered := register(t, engine, "alice@example.com", "Passw0rd1")
	require.NotEmpty(t, registered.AccessToken)
	require.NotEmpty(t, registered.RefreshToken)

	loggedIn, err := engine.Login(ctx, "alice@example.com", "Passw0rd1")
	require.NoError(t, err)

	refreshed, err := engine.Refresh(ctx, loggedIn.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, loggedIn.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is dead.
	_, err = engine.Refresh(ctx, loggedIn.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidSession)

	require.NoError(t, engine.Logout(ctx, refreshed.RefreshToken))
	require.ErrorIs(t, engine.Logout(ctx, refreshed.RefreshToken), ErrInvalidSession)
}
