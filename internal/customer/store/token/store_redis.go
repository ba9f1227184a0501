package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"onboarding/internal/customer/models"
	id "onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix    = "vt:hash:"
	customerKeyPrefix = "vt:customer:"

	// Records outlive their expiry by this long so a late presentation is
	// reported as expired rather than unknown.
	defaultRetention = 24 * time.Hour
)

// RedisStore keeps each token as a JSON value under its digest and tracks
// per-customer creation times in a sorted set for the resend window.
// Redis TTLs replace the sweeper.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRetention sets how long records survive past their expiry.
func WithRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the time source used to compute key TTLs.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, retention: defaultRetention, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type redisToken struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	TokenHash  string    `json:"token_hash"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *RedisStore) Create(ctx context.Context, t *models.VerificationToken) error {
	payload, err := json.Marshal(redisToken{
		ID:         t.ID.String(),
		CustomerID: t.CustomerID.String(),
		TokenHash:  t.TokenHash,
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal verification token: %w", err)
	}

	ttl := t.ExpiresAt.Sub(s.now()) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}

	ok, err := s.client.SetNX(ctx, tokenKeyPrefix+t.TokenHash, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	if !ok {
		return fmt.Errorf("token digest exists: %w", sentinel.ErrConflict)
	}

	customerKey := customerKeyPrefix + t.CustomerID.String()
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, customerKey, redis.Z{Score: float64(t.CreatedAt.UnixMilli()), Member: t.ID.String()})
	pipe.Expire(ctx, customerKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index verification token: %w", err)
	}
	return nil
}

func (s *RedisStore) TakeByHash(ctx context.Context, hash string) (*models.VerificationToken, error) {
	raw, err := s.client.GetDel(ctx, tokenKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verification token: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("take verification token: %w", err)
	}

	var rt redisToken
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("unmarshal verification token: %w", err)
	}
	tokenID, err := id.ParseTokenID(rt.ID)
	if err != nil {
		return nil, fmt.Errorf("parse token id: %w", err)
	}
	customerID, err := id.ParseCustomerID(rt.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("parse customer id: %w", err)
	}

	_ = s.client.ZRem(ctx, customerKeyPrefix+rt.CustomerID, rt.ID).Err()

	return &models.VerificationToken{
		ID:         tokenID,
		CustomerID: customerID,
		TokenHash:  rt.TokenHash,
		ExpiresAt:  rt.ExpiresAt,
		CreatedAt:  rt.CreatedAt,
	}, nil
}

func (s *RedisStore) CountCreatedSince(ctx context.Context, customerID id.CustomerID, since time.Time) (int, error) {
	n, err := s.client.ZCount(ctx, customerKeyPrefix+customerID.String(),
		strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count verification tokens: %w", err)
	}
	return int(n), nil
}

// DeleteExpired is a no-op: key TTLs evict records once retention lapses.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
