package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredentials is returned when the request carries no Authorization header.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUnsupportedScheme is returned when the Authorization scheme is not Basic.
	ErrUnsupportedScheme = errors.New("unsupported authorization scheme")

	// ErrMalformedCredentials is returned when the Basic payload cannot be decoded.
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrInvalidCredentials is returned when the username or secret does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Credentials is an immutable username to secret set.
// Secrets are held in plaintext.
type Credentials struct {
	secrets map[string]string
}

// NewCredentials copies m into a new credential set.
func NewCredentials(m map[string]string) Credentials {
	secrets := make(map[string]string, len(m))
	for user, secret := range m {
		secrets[user] = secret
	}
	return Credentials{secrets: secrets}
}

// DefaultCredentials returns the built-in demo accounts.
func DefaultCredentials() Credentials {
	return NewCredentials(map[string]string{
		"admin": "password123",
		"user":  "user123",
		"demo":  "demo123",
	})
}

// ParseCredentials builds a credential set from "user:secret" pairs separated by commas.
func ParseCredentials(s string) (Credentials, error) {
	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, secret, ok := strings.Cut(pair, ":")
		if !ok || user == "" {
			return Credentials{}, fmt.Errorf("invalid credential pair %q", pair)
		}
		if _, dup := m[user]; dup {
			return Credentials{}, fmt.Errorf("duplicate user %q", user)
		}
		m[user] = secret
	}
	if len(m) == 0 {
		return Credentials{}, errors.New("no credentials configured")
	}
	return Credentials{secrets: m}, nil
}

// Len returns the number of configured users.
func (c Credentials) Len() int {
	return len(c.secrets)
}

// Verify reports whether secret matches the one stored for user.
func (c Credentials) Verify(user, secret string) bool {
	expected, ok := c.secrets[user]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) == 1
}

// ParseBasic decodes a Basic Authorization header value.
func ParseBasic(header string) (user, secret string, err error) {
	if header == "" {
		return "", "", ErrMissingCredentials
	}

	scheme, payload, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Basic") {
		return "", "", ErrUnsupportedScheme
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedCredentials, err)
	}

	user, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("%w: missing separator", ErrMalformedCredentials)
	}
	return user, secret, nil
}

// Reason returns a short label for an authentication error.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMissingCredentials):
		return "missing"
	case errors.Is(err, ErrUnsupportedScheme):
		return "unsupported_scheme"
	case errors.Is(err, ErrMalformedCredentials):
		return "malformed"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid"
	default:
		return "unknown"
	}
}
