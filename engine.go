package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/jwt"
	"github.com/authgate/authgate/password"
	"github.com/authgate/authgate/store"
	"github.com/authgate/authgate/token"
)

// Engine is the credential authority. All operations are safe for
// concurrent use; atomicity of the register and refresh races is
// delegated to the store's create-if-absent and delete-if-present
// primitives.
type Engine struct {
	config Config

	store        store.Store
	tokens       *token.Manager
	jwtManager   *jwt.Manager
	passwordHash *password.Hasher
	limiter      *rate.Limiter

	audit   *auditDispatcher
	metrics *Metrics
	log     logging.Logger

	// decoyHash is verified against when login hits an unknown email,
	// so both failure paths pay the same argon2 cost.
	decoyHash string
}

// Close drains and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	e.audit.close()
}

// Config returns a copy of the engine's effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// MetricsSnapshot returns a point-in-time copy of the operation
// counters. All zeroes when metrics are disabled.
func (e *Engine) MetricsSnapshot() Snapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.dropped()
}

// issuePair mints a fresh access/refresh pair for an identity. The
// refresh token is persisted by digest before either token is handed
// out, so a stored token always exists for every pair in the wild.
func (e *Engine) issuePair(ctx context.Context, identity *store.Identity) (*TokenPair, error) {
	refresh, err := e.tokens.Issue(ctx, identity.ID, clientIPFromContext(ctx))
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	access, err := e.jwtManager.Issue(identity.ID, identity.Email, identity.Username, identity.Name, identity.Roles)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricSessionCreated)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// wrapStoreErr maps store transport failures onto the public sentinel.
// Other errors pass through untouched.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
