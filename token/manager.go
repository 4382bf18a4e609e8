// Package token manages the stateful half of the credential pair: the
// long-lived, opaque, single-use refresh tokens. Raw tokens exist only
// in flight; the store sees SHA-256 digests.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/store"
)

var (
	// ErrNotFound is returned by Redeem when no record matches the token.
	ErrNotFound = errors.New("token: not found")
	// ErrExpired is returned by Redeem after the matching record's expiry
	// has elapsed; the record is removed as a side effect.
	ErrExpired = errors.New("token: expired")
)

// A digest collision means the 384-bit draw repeated, which in practice
// signals a broken RNG rather than bad luck. Retrying a few times keeps
// the failure mode contained either way.
const issueRetries = 3

// Record is the persisted state of one refresh token.
type Record = store.TokenRecord

// Manager issues, redeems, and revokes refresh tokens against a
// credential store.
type Manager struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a Manager. ttl bounds the life of every issued
// token; now may be overridden for tests via WithClock.
func NewManager(st store.Store, ttl time.Duration) *Manager {
	return &Manager{
		store: st,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock replaces the manager's time source. Intended for expiry
// tests; not safe to call after the manager is in use.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the configured refresh-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue generates a fresh opaque token for the identity, persists its
// record, and returns the raw token. Store-level digest collisions are
// retried with a new draw and never surfaced.
func (m *Manager) Issue(ctx context.Context, identityID, clientIP string) (string, error) {
	for attempt := 0; attempt < issueRetries; attempt++ {
		raw, err := internal.NewOpaqueToken(internal.OpaqueTokenLength)
		if err != nil {
			return "", fmt.Errorf("token: generation: %w", err)
		}

		now := m.now()
		rec := Record{
			Digest:      internal.TokenDigest(raw),
			IdentityID:  identityID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(m.ttl),
			CreatedByIP: clientIP,
		}
		err = m.store.CreateToken(ctx, rec)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		return raw, nil
	}
	return "", errors.New("token: exhausted issue retries")
}

// Redeem resolves the raw token to its record. It does NOT consume the
// record; single-use rotation is enforced by the caller through Revoke,
// whose delete-if-present decides the winner of a concurrent race.
// An expired record is deleted (lazy cleanup) before ErrExpired is
// returned.
func (m *Manager) Redeem(ctx context.Context, raw string) (*Record, error) {
	digest := internal.TokenDigest(raw)
	rec, err := m.store.TokenByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if rec.IsExpired(m.now()) {
		if _, derr := m.store.DeleteToken(ctx, digest); derr != nil {
			return nil, derr
		}
		return nil, ErrExpired
	}
	return rec, nil
}

// Revoke deletes the token's record and reports whether it still
// existed. Exactly one of any number of concurrent revokes for the same
// token observes true.
func (m *Manager) Revoke(ctx context.Context, raw string) (bool, error) {
	return m.store.DeleteToken(ctx, internal.TokenDigest(raw))
}

// MarkRotated tombstones a consumed token for the remainder of the
// refresh TTL so that replaying it is distinguishable from presenting
// garbage.
func (m *Manager) MarkRotated(ctx context.Context, raw, identityID string) error {
	return m.store.MarkConsumed(ctx, internal.TokenDigest(raw), identityID, m.ttl)
}

// Rotated reports whether the token was previously consumed by a
// rotation, and which identity owned it.
func (m *Manager) Rotated(ctx context.Context, raw string) (string, bool, error) {
	return m.store.Consumed(ctx, internal.TokenDigest(raw))
}

// RevokeAllForIdentity drops every live token owned by the identity.
func (m *Manager) RevokeAllForIdentity(ctx context.Context, identityID string) (int, error) {
	return m.store.DeleteAllTokens(ctx, identityID)
}
