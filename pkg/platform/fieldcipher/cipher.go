// Package fieldcipher encrypts individual regulated fields (such as an SSN)
// for storage at rest using AES-256-GCM.
//
// Blob layout: nonce (12 bytes) || ciphertext || tag (16 bytes). A fresh
// random nonce is drawn for every Encrypt call, so equal plaintexts produce
// distinct blobs.
package fieldcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	dErrors "onboarding/pkg/domain-errors"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

const (
	nonceSize = 12
	tagSize   = 16
)

// ErrDecryptionFailed is the single error returned for every decrypt failure:
// wrong key, truncated blob or tampering.
var ErrDecryptionFailed = dErrors.New(dErrors.CodeInternal, "decryption failed")

// Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Cipher from a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("encryption key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh nonce.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+tagSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob []byte) (string, error) {
	if len(blob) < nonceSize+tagSize {
		return "", ErrDecryptionFailed
	}
	plaintext, err := c.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
