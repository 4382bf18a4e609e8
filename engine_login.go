package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/authgate/authgate/internal/rate"
	"github.com/authgate/authgate/store"
)

// Login verifies the credentials and issues a fresh token pair. Unknown
// email and wrong password both fail with ErrInvalidCredentials; when
// the email is unknown a decoy hash is verified so neither the response
// nor its timing reveals whether the account exists.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	clientIP := clientIPFromContext(ctx)

	if err := e.limiter.Check(ctx, email, clientIP); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			e.audit.emit(ctx, EventLoginRateLimited, false, "", err, map[string]string{"email": email})
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	identity, err := e.store.IdentityByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, wrapStoreErr(err)
	}

	hash := e.decoyHash
	if identity != nil {
		hash = identity.PasswordHash
	}
	ok, verr := e.passwordHash.Verify(hash, password)
	if verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashingFailure, verr)
	}
	if identity == nil || !ok {
		if rerr := e.limiter.RecordFailure(ctx, email, clientIP); rerr != nil {
			e.log.Warn(ctx, "login throttle record failed", "error", rerr)
		}
		e.metrics.Inc(MetricLoginFailure)
		e.audit.emit(ctx, EventLoginFailure, false, "", nil, map[string]string{"email": email})
		return nil, ErrInvalidCredentials
	}

	if rerr := e.limiter.Reset(ctx, email, clientIP); rerr != nil {
		e.log.Warn(ctx, "login throttle reset failed", "error", rerr)
	}

	pair, err := e.issuePair(ctx, identity)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.audit.emit(ctx, EventLoginSuccess, true, identity.ID, nil, nil)
	return pair, nil
}
