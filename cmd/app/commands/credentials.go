package commands

import (
	"context"
	"fmt"
	"log/slog"
)

// CredentialSealer encrypts a credential into its "kms:" form.
type CredentialSealer interface {
	Seal(ctx context.Context, plaintext string) (string, error)
}

// PasswordHasher produces a PHC string for WEBHOOK_PASSWORD_HASH.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// RunEncryptCredential encrypts a credential with the keeper opened from KMS_KEY_URI and prints
// the value to place in the environment. The value is read from the reader when empty.
func RunEncryptCredential(
	ctx context.Context,
	sealer CredentialSealer,
	logger *slog.Logger,
	streams IOTuple,
	value string,
) error {
	plaintext, err := readValue(streams, value, "Credential: ")
	if err != nil {
		return err
	}

	sealed, err := sealer.Seal(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	_, _ = fmt.Fprintln(streams.Writer, sealed)
	logger.Info("credential encrypted")
	return nil
}

// RunHashWebhookPassword prints the Argon2id hash of a webhook password.
// The value is read from the reader when empty.
func RunHashWebhookPassword(
	hasher PasswordHasher,
	logger *slog.Logger,
	streams IOTuple,
	value string,
) error {
	password, err := readValue(streams, value, "Password: ")
	if err != nil {
		return err
	}

	hash, err := hasher.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, _ = fmt.Fprintln(streams.Writer, hash)
	logger.Info("webhook password hashed")
	return nil
}
