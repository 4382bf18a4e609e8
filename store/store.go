// Package store defines the durable credential store used by the engine:
// identities keyed by id with unique email and username indexes, and
// refresh-token records keyed by token digest. The store is the
// serialization point for all uniqueness guarantees: create operations
// are atomic create-if-absent, and token deletion is atomic
// delete-if-present so that exactly one of any number of concurrent
// callers observes the removal.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConflict is returned when a create hits an existing email or
	// token digest.
	ErrConflict = errors.New("store: already exists")
	// ErrUsernameTaken is returned when only the username index collides,
	// so callers can retry with a different generated name.
	ErrUsernameTaken = errors.New("store: username taken")
	// ErrNotFound is returned for lookups and deletes of absent keys.
	ErrNotFound = errors.New("store: not found")
	// ErrUnavailable wraps transport failures and timeouts.
	ErrUnavailable = errors.New("store: unavailable")
)

// Identity is the durable account record. PasswordHash is never included
// when the record is serialized for callers outside the engine.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username,omitempty"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenRecord is the server-side state of one refresh token. Only the
// SHA-256 digest of the opaque token is ever persisted.
type TokenRecord struct {
	Digest      string    `json:"-"`
	IdentityID  string    `json:"identity_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedByIP string    `json:"created_by_ip,omitempty"`
}

// IsExpired reports whether the record's expiry has elapsed at now.
func (r *TokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsActive reports whether the record is still redeemable at now.
func (r *TokenRecord) IsActive(now time.Time) bool {
	return !r.IsExpired(now)
}

// Store is the persistence contract the engine composes against. All
// methods honor context cancellation and return ErrUnavailable (wrapped)
// for backend failures.
type Store interface {
	// CreateIdentity atomically reserves the identity's email (and
	// username, when set), then writes the record. A taken email yields
	// ErrConflict with no partial state; a taken username yields
	// ErrUsernameTaken and releases the email reservation.
	CreateIdentity(ctx context.Context, identity Identity) error
	IdentityByEmail(ctx context.Context, email string) (*Identity, error)
	IdentityByID(ctx context.Context, id string) (*Identity, error)

	// CreateToken writes a refresh record iff the digest is unused,
	// bounded by the record's own expiry. Returns ErrConflict on a digest
	// collision.
	CreateToken(ctx context.Context, rec TokenRecord) error
	TokenByDigest(ctx context.Context, digest string) (*TokenRecord, error)
	// DeleteToken removes the record and reports whether it existed.
	// The removal is atomic: under concurrent calls for the same digest
	// exactly one caller sees true.
	DeleteToken(ctx context.Context, digest string) (bool, error)
	// DeleteAllTokens drops every live refresh record owned by the
	// identity and returns how many were removed.
	DeleteAllTokens(ctx context.Context, identityID string) (int, error)

	// MarkConsumed leaves a tombstone for a rotated digest so later
	// presentations can be classified as reuse rather than noise.
	MarkConsumed(ctx context.Context, digest, identityID string, ttl time.Duration) error
	// Consumed reports whether the digest was previously rotated and, if
	// so, which identity owned it.
	Consumed(ctx context.Context, digest string) (string, bool, error)
}
