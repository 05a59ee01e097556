package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credentialService "github.com/allisson/cecsync/internal/credential/service"
	eventService "github.com/allisson/cecsync/internal/event/service"
)

type failingSealer struct{}

func (failingSealer) Seal(ctx context.Context, plaintext string) (string, error) {
	return "", errors.New("keeper unavailable")
}

func TestRunEncryptCredential(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("flag-value", func(t *testing.T) {
		var out bytes.Buffer
		sealer := &recordingSealer{}

		err := RunEncryptCredential(ctx, sealer, logger, IOTuple{Reader: strings.NewReader(""), Writer: &out}, "secret")

		require.NoError(t, err)
		assert.Equal(t, "kms:secret\n", out.String())
		assert.Equal(t, []string{"secret"}, sealer.values)
	})

	t.Run("reader-value", func(t *testing.T) {
		var out bytes.Buffer
		sealer := &recordingSealer{}

		err := RunEncryptCredential(ctx, sealer, logger, IOTuple{Reader: strings.NewReader("from-stdin\n"), Writer: &out}, "")

		require.NoError(t, err)
		assert.Equal(t, []string{"from-stdin"}, sealer.values)
		assert.Contains(t, out.String(), "kms:from-stdin")
	})

	t.Run("empty-reader", func(t *testing.T) {
		err := RunEncryptCredential(ctx, &recordingSealer{}, logger, IOTuple{Reader: strings.NewReader(""), Writer: &bytes.Buffer{}}, "")

		assert.EqualError(t, err, "no value provided")
	})

	t.Run("keeper-not-configured", func(t *testing.T) {
		cipher := credentialService.NewCredentialCipher(nil)

		err := RunEncryptCredential(ctx, cipher, logger, IOTuple{Reader: strings.NewReader(""), Writer: &bytes.Buffer{}}, "secret")

		assert.ErrorIs(t, err, credentialService.ErrKeeperNotConfigured)
	})

	t.Run("seal-error", func(t *testing.T) {
		err := RunEncryptCredential(ctx, failingSealer{}, logger, IOTuple{Reader: strings.NewReader(""), Writer: &bytes.Buffer{}}, "secret")

		assert.ErrorContains(t, err, "failed to encrypt credential: keeper unavailable")
	})
}

type recordingSealer struct {
	values []string
}

func (s *recordingSealer) Seal(ctx context.Context, plaintext string) (string, error) {
	s.values = append(s.values, plaintext)
	return credentialService.EncryptedPrefix + plaintext, nil
}

func TestRunHashWebhookPassword(t *testing.T) {
	logger := slog.Default()

	verifier, err := eventService.NewCredentialVerifier("", "", "")
	require.NoError(t, err)

	t.Run("hash-verifies", func(t *testing.T) {
		var out bytes.Buffer

		err := RunHashWebhookPassword(verifier, logger, IOTuple{Reader: strings.NewReader(""), Writer: &out}, "hook-pass")
		require.NoError(t, err)

		hash := strings.TrimSpace(out.String())
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

		hashed, err := eventService.NewCredentialVerifier("cec", "", hash)
		require.NoError(t, err)
		assert.NoError(t, hashed.Verify("cec", "hook-pass", true))
	})

	t.Run("empty-value", func(t *testing.T) {
		err := RunHashWebhookPassword(verifier, logger, IOTuple{Reader: strings.NewReader("\n"), Writer: &bytes.Buffer{}}, "")

		assert.EqualError(t, err, "no value provided")
	})
}
