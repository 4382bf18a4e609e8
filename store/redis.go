package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 3 * time.Second

// Redis implements Store on a Redis backend. Key layout under the
// configured prefix (default "ag"):
//
//	<p>:id:<uuid>        identity record (JSON)
//	<p>:email:<email>    email -> identity id (uniqueness reservation)
//	<p>:uname:<username> username -> identity id
//	<p>:rt:<digest>      refresh record (JSON, TTL-bound)
//	<p>:rts:<uuid>       set of digests owned by the identity
//	<p>:used:<digest>    rotation tombstone -> identity id (TTL-bound)
//
// Uniqueness rides on SET NX, single-use rotation on single-key DEL;
// both are atomic on the server, so the store itself is the
// serialization point.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewRedis creates a Redis-backed Store. prefix namespaces all keys;
// opTimeout bounds every backend call (<= 0 selects the 3s default).
func NewRedis(client redis.UniversalClient, prefix string, opTimeout time.Duration) *Redis {
	if prefix == "" {
		prefix = "ag"
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Redis{
		client:    client,
		prefix:    prefix,
		opTimeout: opTimeout,
	}
}

func (r *Redis) identityKey(id string) string    { return r.prefix + ":id:" + id }
func (r *Redis) emailKey(email string) string    { return r.prefix + ":email:" + email }
func (r *Redis) usernameKey(name string) string  { return r.prefix + ":uname:" + name }
func (r *Redis) tokenKey(digest string) string   { return r.prefix + ":rt:" + digest }
func (r *Redis) indexKey(identityID string) string {
	return r.prefix + ":rts:" + identityID
}
func (r *Redis) usedKey(digest string) string { return r.prefix + ":used:" + digest }

func (r *Redis) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// CreateIdentity reserves the email first (that reservation is the
// atomic uniqueness check), then the username, then writes the record.
func (r *Redis) CreateIdentity(ctx context.Context, identity Identity) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	ok, err := r.client.SetNX(ctx, r.emailKey(identity.Email), identity.ID, 0).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrConflict
	}

	if identity.Username != "" {
		ok, err = r.client.SetNX(ctx, r.usernameKey(identity.Username), identity.ID, 0).Result()
		if err != nil || !ok {
			// Release the email reservation so a retry (or a later
			// registration) is not wedged by this half-finished create.
			_ = r.client.Del(context.WithoutCancel(ctx), r.emailKey(identity.Email)).Err()
			if err != nil {
				return unavailable(err)
			}
			return ErrUsernameTaken
		}
	}

	data, err := marshalIdentity(identity)
	if err != nil {
		r.releaseReservations(ctx, identity)
		return err
	}
	if err := r.client.Set(ctx, r.identityKey(identity.ID), data, 0).Err(); err != nil {
		// Without this the email stays reserved forever: registration
		// would keep failing ErrConflict for an identity that was never
		// written.
		r.releaseReservations(ctx, identity)
		return unavailable(err)
	}
	return nil
}

func (r *Redis) releaseReservations(ctx context.Context, identity Identity) {
	keys := []string{r.emailKey(identity.Email)}
	if identity.Username != "" {
		keys = append(keys, r.usernameKey(identity.Username))
	}
	_ = r.client.Del(context.WithoutCancel(ctx), keys...).Err()
}

// IdentityByEmail resolves the email index, then loads the record.
func (r *Redis) IdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	id, err := r.client.Get(ctx, r.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return r.loadIdentity(ctx, id)
}

// IdentityByID loads an identity record by its id.
func (r *Redis) IdentityByID(ctx context.Context, id string) (*Identity, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	return r.loadIdentity(ctx, id)
}

func (r *Redis) loadIdentity(ctx context.Context, id string) (*Identity, error) {
	data, err := r.client.Get(ctx, r.identityKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	identity, err := unmarshalIdentity(data)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// CreateToken writes the record under its digest with the record's own
// TTL, then adds the digest to the owner's index.
func (r *Redis) CreateToken(ctx context.Context, rec TokenRecord) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("store: token record already expired")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.tokenKey(rec.Digest), data, ttl).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return ErrConflict
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.indexKey(rec.IdentityID), rec.Digest)
	pipe.Expire(ctx, r.indexKey(rec.IdentityID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// A token outside the index would survive DeleteAllTokens.
		// Better no token at all than an unindexed one.
		_ = r.client.Del(context.WithoutCancel(ctx), r.tokenKey(rec.Digest)).Err()
		return unavailable(err)
	}
	return nil
}

// TokenByDigest loads a refresh record. Expired records vanish on their
// own through the key TTL, so an elapsed key reads as ErrNotFound.
func (r *Redis) TokenByDigest(ctx context.Context, digest string) (*TokenRecord, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, r.tokenKey(digest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	rec.Digest = digest
	return &rec, nil
}

// DeleteToken removes the record with a single DEL. Redis executes DEL
// atomically, so under a concurrent race exactly one caller gets true.
func (r *Redis) DeleteToken(ctx context.Context, digest string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	rec, err := r.TokenByDigest(ctx, digest)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	n, err := r.client.Del(ctx, r.tokenKey(digest)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	if rec != nil {
		_ = r.client.SRem(context.WithoutCancel(ctx), r.indexKey(rec.IdentityID), digest).Err()
	}
	return n == 1, nil
}

// DeleteAllTokens walks the identity's digest index and removes every
// live record. Not fully atomic: a token issued between the read and the
// delete survives, which only widens the set of valid tokens the caller
// already accepted.
func (r *Redis) DeleteAllTokens(ctx context.Context, identityID string) (int, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	digests, err := r.client.SMembers(ctx, r.indexKey(identityID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	if len(digests) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(digests)+1)
	for _, d := range digests {
		keys = append(keys, r.tokenKey(d))
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	_ = r.client.Del(context.WithoutCancel(ctx), r.indexKey(identityID)).Err()
	return int(n), nil
}

// MarkConsumed leaves a tombstone for a rotated digest.
func (r *Redis) MarkConsumed(ctx context.Context, digest, identityID string, ttl time.Duration) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.usedKey(digest), identityID, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Consumed reports whether the digest carries a rotation tombstone.
func (r *Redis) Consumed(ctx context.Context, digest string) (string, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	id, err := r.client.Get(ctx, r.usedKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return id, true, nil
}

// The identity blob keeps the password hash under an explicit key while
// the public Identity type hides it from JSON by default.
type identityBlob struct {
	Identity
	StoredHash string `json:"password_hash"`
}

func marshalIdentity(identity Identity) ([]byte, error) {
	return json.Marshal(identityBlob{Identity: identity, StoredHash: identity.PasswordHash})
}

func unmarshalIdentity(data []byte) (*Identity, error) {
	var blob identityBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	identity := blob.Identity
	identity.PasswordHash = blob.StoredHash
	return &identity, nil
}
