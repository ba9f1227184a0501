package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr           string
	LogLevel       string
	DatabaseURL    string
	Redis          RedisConfig
	Kafka          KafkaConfig
	JWTSigningKey  string
	JWTIssuer      string
	Encryption     EncryptionConfig
	Verification   VerificationConfig
	AllowedOrigins []string
	BcryptCost     int
}

// RedisConfig holds go-redis client settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker settings. No brokers means events stay in process.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// EncryptionConfig selects the source of the field encryption key. When
// KMSKeyID is set the encrypted data key is decrypted through AWS KMS,
// otherwise StaticKey must hold a base64 encoded 32-byte key.
type EncryptionConfig struct {
	StaticKey    string
	KMSKeyID     string
	EncryptedDEK string
	AWSRegion    string
}

// VerificationConfig tunes token lifetime and the resend window.
type VerificationConfig struct {
	TokenTTL      time.Duration
	ResendLimit   int
	ResendWindow  time.Duration
	SweepInterval time.Duration
}

// UsesKMS reports whether the field key comes from KMS.
func (e EncryptionConfig) UsesKMS() bool {
	return e.KMSKeyID != ""
}

// Durable reports whether Postgres backs the stores.
func (s Server) Durable() bool {
	return s.DatabaseURL != ""
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:        getEnv("ONBOARDING_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "customer-events"),
			Group:   getEnv("KAFKA_GROUP", "onboarding-verification"),
		},
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     getEnv("JWT_ISSUER", "onboarding"),
		Encryption: EncryptionConfig{
			StaticKey:    os.Getenv("FIELD_ENCRYPTION_KEY"),
			KMSKeyID:     os.Getenv("KMS_KEY_ID"),
			EncryptedDEK: os.Getenv("KMS_ENCRYPTED_DEK"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		},
		Verification: VerificationConfig{
			TokenTTL:      getEnvDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
			ResendLimit:   getEnvInt("VERIFICATION_RESEND_LIMIT", 3),
			ResendWindow:  getEnvDuration("VERIFICATION_RESEND_WINDOW", time.Hour),
			SweepInterval: getEnvDuration("VERIFICATION_SWEEP_INTERVAL", 15*time.Minute),
		},
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		BcryptCost:     getEnvInt("BCRYPT_COST", 12),
	}

	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	if s.Encryption.UsesKMS() && s.Encryption.EncryptedDEK == "" {
		return fmt.Errorf("KMS_ENCRYPTED_DEK is required when KMS_KEY_ID is set")
	}
	if !s.Encryption.UsesKMS() && s.Encryption.StaticKey == "" {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY or KMS_KEY_ID must be set")
	}
	if s.Verification.TokenTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TOKEN_TTL must be positive")
	}
	if s.Verification.ResendLimit <= 0 {
		return fmt.Errorf("VERIFICATION_RESEND_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
