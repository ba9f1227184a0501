// Package secrets resolves the data encryption key used by the field cipher.
//
// Two sources are supported: a base64 key supplied directly (local and test
// environments) and an AWS KMS envelope, where only the KMS-encrypted data key
// is configured and the plaintext key is recovered at startup.
package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	dErrors "onboarding/pkg/domain-errors"
)

// KeySize is the expected data key length (AES-256).
const KeySize = 32

// KeyResolver produces the plaintext data key.
type KeyResolver interface {
	ResolveKey(ctx context.Context) ([]byte, error)
}

// StaticResolver decodes a base64 key held in configuration.
type StaticResolver struct {
	encoded string
}

func NewStaticResolver(encoded string) *StaticResolver {
	return &StaticResolver{encoded: strings.TrimSpace(encoded)}
}

func (r *StaticResolver) ResolveKey(_ context.Context) ([]byte, error) {
	if r.encoded == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encryption key not configured")
	}
	key, err := base64.StdEncoding.DecodeString(r.encoded)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encryption key is not valid base64")
	}
	if len(key) != KeySize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("encryption key must decode to %d bytes", KeySize))
	}
	return key, nil
}

// KMSDecrypter is the subset of the KMS client used here.
type KMSDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSResolver decrypts an envelope-encrypted data key with AWS KMS.
type KMSResolver struct {
	client       KMSDecrypter
	keyID        string
	encryptedDEK []byte
}

// NewKMSResolver builds a resolver. encryptedDEK is the base64 CiphertextBlob
// returned by kms:GenerateDataKey.
func NewKMSResolver(client KMSDecrypter, keyID, encryptedDEK string) (*KMSResolver, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encryptedDEK))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encrypted data key is not valid base64")
	}
	if len(blob) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encrypted data key not configured")
	}
	return &KMSResolver{client: client, keyID: keyID, encryptedDEK: blob}, nil
}

// NewKMSClient loads the default AWS configuration chain for region.
func NewKMSClient(ctx context.Context, region string) (*kms.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return kms.NewFromConfig(cfg), nil
}

func (r *KMSResolver) ResolveKey(ctx context.Context) ([]byte, error) {
	input := &kms.DecryptInput{CiphertextBlob: r.encryptedDEK}
	if r.keyID != "" {
		input.KeyId = aws.String(r.keyID)
	}
	out, err := r.client.Decrypt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("kms decrypt data key: %w", err)
	}
	if len(out.Plaintext) != KeySize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("kms data key must be %d bytes", KeySize))
	}
	return out.Plaintext, nil
}
