// Package jwt mints and verifies the stateless access tokens issued by
// the engine. Tokens are HS256-signed JWTs; their authority comes from
// the signature and the embedded expiry alone; validation never touches
// the credential store.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalid covers bad signatures, wrong algorithms, and any other
	// structural defect in a presented token.
	ErrInvalid = errors.New("jwt: invalid token")
	// ErrExpired is returned for tokens whose signature checks out but
	// whose expiry has elapsed.
	ErrExpired = errors.New("jwt: token expired")
)

const maxLeeway = 2 * time.Minute

// Config carries the signing configuration. Secret must be set by the
// caller; there is deliberately no fallback value.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	// Leeway is the clock-skew tolerance applied at verification.
	// Zero (the default) means strict expiry.
	Leeway time.Duration
}

// AccessClaims is the claim set carried by every access token. Subject
// holds the identity id.
type AccessClaims struct {
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Manager is a stateless signer/verifier pair over (claims, secret,
// time). Any number of goroutines may call it concurrently.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: signing secret required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: access TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("jwt: leeway out of range")
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a token for the identity described by the arguments. The
// encoding is deterministic except for the timestamps.
func (m *Manager) Issue(identityID, email, username, name string, roles []string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Email:    email,
		Username: username,
		Name:     name,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies the signature first and only then the claims, so a
// forged payload is rejected before anything in it is inspected. Expired
// tokens map to ErrExpired, everything else to ErrInvalid.
func (m *Manager) Parse(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}
