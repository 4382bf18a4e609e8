package authgate

import "errors"

var (
	// ErrIdentityConflict is returned by Register when the email is
	// already taken. The losing side of a concurrent duplicate
	// registration gets this too.
	ErrIdentityConflict = errors.New("identity already exists")

	// ErrInvalidCredentials is the single login failure: unknown email
	// and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession covers every refresh/logout failure caused by
	// the presented refresh token: missing, expired, already rotated,
	// or lost a concurrent redemption race.
	ErrInvalidSession = errors.New("invalid session")

	// ErrRegistrationInvalid is returned by Register for inputs the
	// engine refuses outright (empty email, short password).
	ErrRegistrationInvalid = errors.New("invalid registration request")

	// ErrHashingFailure signals an internal password-hasher fault:
	// entropy exhaustion on hash, or a corrupt stored hash on verify.
	ErrHashingFailure = errors.New("password hashing failure")

	// ErrTokenInvalid and ErrTokenExpired are the access-token
	// verification outcomes surfaced to downstream consumers via
	// [Engine.Validate].
	ErrTokenInvalid = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token expired")

	// ErrStoreUnavailable wraps credential-store timeouts and outages.
	// Callers may retry with backoff; the engine never retries
	// indefinitely on their behalf.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrRateLimited is returned by Login when throttling is enabled and
	// the identifier or IP is over budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
