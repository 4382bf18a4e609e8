package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/authgate/authgate/jwt"
)

// Validate verifies an access token's signature and expiry and returns
// its claims. The check is purely cryptographic: no store lookup
// happens, so a token stays valid until it expires even after logout.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*jwt.AccessClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}
