// Package service decrypts and encrypts configuration credentials with a KMS keeper.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	"github.com/allisson/cecsync/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// EncryptedPrefix marks a credential holding base64 KMS ciphertext.
const EncryptedPrefix = "kms:"

// ErrKeeperNotConfigured indicates an encrypted credential was found without KMS_KEY_URI.
var ErrKeeperNotConfigured = errors.Wrap(errors.ErrInvalidInput, "encrypted credential requires KMS_KEY_URI")

// Keeper encrypts and decrypts with a KMS key. *secrets.Keeper implements it.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens keepers for a KMS key URI.
type KMSService interface {
	// OpenKeeper opens a Keeper for the configured KMS provider.
	// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
	OpenKeeper(ctx context.Context, keyURI string) (Keeper, error)
}

type kmsService struct{}

// NewKMSService creates a new KMS service instance.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a secrets.Keeper using the keyURI.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// IsEncrypted reports whether value carries the EncryptedPrefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// CredentialCipher converts credentials between plaintext and the "kms:<base64>" form.
// A cipher without a keeper passes plaintext values through and rejects encrypted ones.
type CredentialCipher struct {
	keeper Keeper
}

// NewCredentialCipher creates a CredentialCipher. keeper may be nil.
func NewCredentialCipher(keeper Keeper) *CredentialCipher {
	return &CredentialCipher{keeper: keeper}
}

// Reveal returns the plaintext of value. Values without the prefix are returned unchanged.
func (c *CredentialCipher) Reveal(ctx context.Context, value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if c.keeper == nil {
		return "", ErrKeeperNotConfigured
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", errors.Wrap(errors.ErrInvalidInput, "encrypted credential is not valid base64")
	}
	plaintext, err := c.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}

// RevealAll replaces every referenced value with its plaintext.
func (c *CredentialCipher) RevealAll(ctx context.Context, values map[string]*string) error {
	for name, value := range values {
		plaintext, err := c.Reveal(ctx, *value)
		if err != nil {
			return errors.Wrapf(err, "credential %s", name)
		}
		*value = plaintext
	}
	return nil
}

// Seal encrypts plaintext into the "kms:<base64>" form.
func (c *CredentialCipher) Seal(ctx context.Context, plaintext string) (string, error) {
	if c.keeper == nil {
		return "", ErrKeeperNotConfigured
	}
	if plaintext == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "credential is empty")
	}
	ciphertext, err := c.keeper.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}
