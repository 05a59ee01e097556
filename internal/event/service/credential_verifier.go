// Package service provides webhook credential verification.
// Passwords are compared in constant time, either against a configured plain value or against
// an Argon2id hash produced by HashPassword.
package service

import (
	"crypto/subtle"

	"github.com/allisson/go-pwdhash"

	"github.com/allisson/cecsync/internal/errors"
	"github.com/allisson/cecsync/internal/event/domain"
)

// CredentialVerifier checks webhook Basic credentials against the configured account.
type CredentialVerifier struct {
	username     string
	password     string
	passwordHash string
	hasher       *pwdhash.PasswordHasher
}

// NewCredentialVerifier creates a verifier. An empty username disables authentication.
// When passwordHash is set it takes precedence over password.
func NewCredentialVerifier(username, password, passwordHash string) (*CredentialVerifier, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create password hasher")
	}
	return &CredentialVerifier{
		username:     username,
		password:     password,
		passwordHash: passwordHash,
		hasher:       hasher,
	}, nil
}

// Enabled reports whether deliveries must carry credentials.
func (v *CredentialVerifier) Enabled() bool {
	return v.username != ""
}

// Verify returns domain.ErrAuthRejected when authentication is enabled and the presented
// credentials are missing or do not match.
func (v *CredentialVerifier) Verify(username, password string, present bool) error {
	if !v.Enabled() {
		return nil
	}
	if !present {
		return domain.ErrAuthRejected
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passwordOK := v.verifyPassword(password)
	if !usernameOK || !passwordOK {
		return domain.ErrAuthRejected
	}
	return nil
}

func (v *CredentialVerifier) verifyPassword(password string) bool {
	if v.passwordHash != "" {
		ok, err := v.hasher.Verify([]byte(password), v.passwordHash)
		return err == nil && ok
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(v.password)) == 1
}

// HashPassword returns the Argon2id hash to configure as the webhook password hash.
func (v *CredentialVerifier) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "password is required")
	}
	hash, err := v.hasher.Hash([]byte(password))
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return hash, nil
}
