package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/authgate/authgate/internal"
	"github.com/authgate/authgate/store"
)

const minPasswordLength = 8

// Auto-generated usernames can collide; each retry draws a new suffix.
const usernameRetries = 3

// Register creates a new identity and issues its first credential pair.
// Email is normalized to lowercase before uniqueness is decided. A
// duplicate email fails with ErrIdentityConflict and leaves no partial
// state; under concurrent duplicate registrations exactly one caller
// wins.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegistration(email, req.Password); err != nil {
		return nil, err
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	now := time.Now().UTC()
	identity := store.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     strings.TrimSpace(req.Username),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Roles:        []string{DefaultRole},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	generated := identity.Username == ""
	for attempt := 0; ; attempt++ {
		if generated {
			identity.Username, err = generatedUsername(email)
			if err != nil {
				return nil, err
			}
		}

		err = e.store.CreateIdentity(ctx, identity)
		if err == nil {
			break
		}
		// A collision on a name we invented is our problem, not the
		// caller's.
		if generated && errors.Is(err, store.ErrUsernameTaken) && attempt < usernameRetries {
			continue
		}
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrUsernameTaken) {
			e.metrics.Inc(MetricRegisterConflict)
			e.audit.emit(ctx, EventRegisterConflict, false, "", err, map[string]string{"email": email})
			return nil, fmt.Errorf("%w: %v", ErrIdentityConflict, err)
		}
		return nil, wrapStoreErr(err)
	}

	pair, err := e.issuePair(ctx, &identity)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.audit.emit(ctx, EventRegisterSuccess, true, identity.ID, nil, nil)
	e.log.Info(ctx, "identity registered", "identity_id", identity.ID)
	return pair, nil
}

func validateRegistration(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email", ErrRegistrationInvalid)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password too short", ErrRegistrationInvalid)
	}
	return nil
}

// generatedUsername builds "<email local-part>-<random suffix>".
func generatedUsername(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	suffix, err := internal.NewUsernameSuffix()
	if err != nil {
		return "", err
	}
	return local + "-" + suffix, nil
}
