// Package internal holds entropy helpers shared by the engine.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// The alphabet has exactly 64 symbols, so reducing a random byte mod 64
// introduces no modulo bias.
const urlSafeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

const (
	// OpaqueTokenLength is the character count of issued refresh tokens:
	// 64 symbols of a 64-symbol alphabet, 384 bits of entropy.
	OpaqueTokenLength = 64

	// UsernameSuffixLength is the length of the random disambiguating
	// suffix appended to auto-generated usernames.
	UsernameSuffixLength = 4
)

// NewOpaqueToken draws length URL-safe characters from crypto/rand.
func NewOpaqueToken(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	for i, b := range raw {
		raw[i] = urlSafeAlphabet[int(b)%len(urlSafeAlphabet)]
	}
	return string(raw), nil
}

// TokenDigest returns the hex SHA-256 of a raw token. Stores persist
// digests, never raw tokens.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewUsernameSuffix returns a short random suffix for generated
// usernames.
func NewUsernameSuffix() (string, error) {
	return NewOpaqueToken(UsernameSuffixLength)
}
