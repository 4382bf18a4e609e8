package authgate

import "context"

// Logout revokes the presented refresh token, ending that session
// chain. A token the store does not hold, including one already rotated
// or revoked, fails with ErrInvalidSession. The paired access token
// stays valid until its own expiry; it was never stored.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	existed, err := e.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return wrapStoreErr(err)
	}
	if !existed {
		return ErrInvalidSession
	}

	e.metrics.Inc(MetricLogout)
	e.metrics.Inc(MetricSessionRevoked)
	e.audit.emit(ctx, EventLogout, true, "", nil, nil)
	return nil
}

// LogoutAll revokes every live refresh token owned by the identity.
// Revoking zero tokens is not an error.
func (e *Engine) LogoutAll(ctx context.Context, identityID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	n, err := e.tokens.RevokeAllForIdentity(ctx, identityID)
	if err != nil {
		return wrapStoreErr(err)
	}

	e.metrics.Inc(MetricLogoutAll)
	e.audit.emit(ctx, EventLogoutAll, true, identityID, nil, nil)
	e.log.Info(ctx, "all sessions revoked", "identity_id", identityID, "revoked", n)
	return nil
}
