package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FIELD_ENCRYPTION_KEY", "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDE=")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.False(t, cfg.Durable())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 24*time.Hour, cfg.Verification.TokenTTL)
	assert.Equal(t, 3, cfg.Verification.ResendLimit)
	assert.Equal(t, time.Hour, cfg.Verification.ResendWindow)
	assert.False(t, cfg.Encryption.UsesKMS())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FIELD_ENCRYPTION_KEY", "")
	t.Setenv("KMS_KEY_ID", "alias/onboarding")
	t.Setenv("KMS_ENCRYPTED_DEK", "ZGVr")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("VERIFICATION_RESEND_LIMIT", "5")
	t.Setenv("VERIFICATION_TOKEN_TTL", "2h")
	t.Setenv("DATABASE_URL", "postgres://localhost/onboarding")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Durable())
	assert.True(t, cfg.Encryption.UsesKMS())
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Verification.ResendLimit)
	assert.Equal(t, 2*time.Hour, cfg.Verification.TokenTTL)
}

func TestFromEnvRequiresKeySource(t *testing.T) {
	t.Setenv("FIELD_ENCRYPTION_KEY", "")
	t.Setenv("KMS_KEY_ID", "")

	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("KMS_KEY_ID", "alias/onboarding")
	t.Setenv("KMS_ENCRYPTED_DEK", "")
	_, err = FromEnv()
	require.Error(t, err)
}
