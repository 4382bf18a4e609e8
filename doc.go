// Package authgate is a credential-and-session authority: it registers
// identities, verifies passwords, and issues a two-token credential
// pair: a short-lived stateless JWT access token and a long-lived, opaque,
// single-use refresh token that rotates on every redemption.
//
// The package is the public surface. It exposes [Engine], [Builder],
// [Config], the error taxonomy, and value types; flow coordination and
// entropy helpers live under internal/ and are never exported. Leaf
// packages own one concern each: password hashing (password), access
// token signing (jwt), refresh token lifecycle (token), and durable
// state (store).
//
// # Engine contract
//
// Engine methods are safe for concurrent use after [Builder.Build]. The
// engine is stateless between calls; every durable fact lives in the
// credential store, whose atomic create-if-absent and delete-if-present
// operations are the serialization points for the two races that
// matter: duplicate registration and concurrent refresh of the same
// token. Exactly one caller wins either race.
//
// # What this package must NOT do
//
//   - Expose the Redis client, raw store keys, or token digests in its
//     public API.
//   - Keep a valid refresh token alive after it has been redeemed or
//     revoked.
//   - Reveal, in error values or timing, whether a login failure was an
//     unknown email or a wrong password.
package authgate
