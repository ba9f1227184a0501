package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboarding/pkg/domain-errors"
)

func TestStaticResolver(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, KeySize)

	t.Run("decodes a 32-byte key", func(t *testing.T) {
		got, err := NewStaticResolver(base64.StdEncoding.EncodeToString(key)).ResolveKey(context.Background())
		require.NoError(t, err)
		assert.Equal(t, key, got)
	})

	t.Run("rejects missing key", func(t *testing.T) {
		_, err := NewStaticResolver("  ").ResolveKey(context.Background())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := NewStaticResolver(base64.StdEncoding.EncodeToString(key[:16])).ResolveKey(context.Background())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

type fakeKMS struct {
	plaintext []byte
	err       error
	got       *kms.DecryptInput
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &kms.DecryptOutput{Plaintext: f.plaintext}, nil
}

func TestKMSResolver(t *testing.T) {
	blob := []byte("kms-ciphertext-blob")
	encoded := base64.StdEncoding.EncodeToString(blob)

	t.Run("returns decrypted data key", func(t *testing.T) {
		client := &fakeKMS{plaintext: bytes.Repeat([]byte{1}, KeySize)}
		r, err := NewKMSResolver(client, "alias/onboarding", encoded)
		require.NoError(t, err)

		key, err := r.ResolveKey(context.Background())
		require.NoError(t, err)
		assert.Len(t, key, KeySize)
		assert.Equal(t, blob, client.got.CiphertextBlob)
		assert.Equal(t, "alias/onboarding", *client.got.KeyId)
	})

	t.Run("propagates kms failure", func(t *testing.T) {
		r, err := NewKMSResolver(&fakeKMS{err: errors.New("access denied")}, "", encoded)
		require.NoError(t, err)
		_, err = r.ResolveKey(context.Background())
		require.ErrorContains(t, err, "access denied")
	})

	t.Run("rejects short data key", func(t *testing.T) {
		r, err := NewKMSResolver(&fakeKMS{plaintext: []byte("short")}, "", encoded)
		require.NoError(t, err)
		_, err = r.ResolveKey(context.Background())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty envelope", func(t *testing.T) {
		_, err := NewKMSResolver(&fakeKMS{}, "", "")
		assert.Error(t, err)
	})
}
