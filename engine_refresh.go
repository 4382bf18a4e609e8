package authgate

import (
	"context"
	"errors"

	"github.com/authgate/authgate/token"
)

// Refresh rotates a refresh token: the presented token is consumed and a
// brand-new pair is issued for its owning identity. Every failure caused
// by the token itself (missing, expired, already rotated, lost the
// race) is ErrInvalidSession.
//
// Consumption is decided by an atomic delete-if-present, so of any
// number of concurrent refreshes presenting the same token exactly one
// succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.tokens.Redeem(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrNotFound):
			return nil, e.refreshMiss(ctx, refreshToken)
		case errors.Is(err, token.ErrExpired):
			e.metrics.Inc(MetricRefreshFailure)
			e.audit.emit(ctx, EventRefreshFailure, false, "", err, nil)
			return nil, ErrInvalidSession
		default:
			return nil, wrapStoreErr(err)
		}
	}

	// Rotation step. Only the winner of the delete race proceeds.
	existed, err := e.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !existed {
		e.metrics.Inc(MetricRefreshFailure)
		e.audit.emit(ctx, EventRefreshFailure, false, rec.IdentityID, nil, map[string]string{"reason": "lost rotation race"})
		return nil, ErrInvalidSession
	}
	e.metrics.Inc(MetricSessionRevoked)

	if e.config.Security.ReuseDetection {
		if merr := e.tokens.MarkRotated(ctx, refreshToken, rec.IdentityID); merr != nil {
			e.log.Warn(ctx, "rotation tombstone write failed", "error", merr)
		}
	}

	identity, err := e.store.IdentityByID(ctx, rec.IdentityID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	pair, err := e.issuePair(ctx, identity)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.audit.emit(ctx, EventRefreshSuccess, true, identity.ID, nil, nil)
	return pair, nil
}

// refreshMiss classifies a token the store does not know: either noise,
// or the replay of a token a rotation already consumed. Replay is a
// theft signal; with RevokeOnReuse set the whole chain is cut.
func (e *Engine) refreshMiss(ctx context.Context, refreshToken string) error {
	if e.config.Security.ReuseDetection {
		identityID, reused, err := e.tokens.Rotated(ctx, refreshToken)
		if err != nil {
			return wrapStoreErr(err)
		}
		if reused {
			e.metrics.Inc(MetricRefreshReuseDetected)
			e.audit.emit(ctx, EventRefreshReuse, false, identityID, nil, nil)
			e.log.Warn(ctx, "refresh token reuse detected", "identity_id", identityID)
			if e.config.Security.RevokeOnReuse {
				if n, rerr := e.tokens.RevokeAllForIdentity(ctx, identityID); rerr != nil {
					e.log.Error(ctx, "reuse chain revocation failed", "identity_id", identityID, "error", rerr)
				} else if n > 0 {
					e.metrics.Inc(MetricSessionRevoked)
				}
			}
			return ErrInvalidSession
		}
	}
	e.metrics.Inc(MetricRefreshFailure)
	e.audit.emit(ctx, EventRefreshFailure, false, "", nil, nil)
	return ErrInvalidSession
}
