package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crewhire/onboarding-backend/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "onboarding:suspend:"

// ErrNotFound is returned for unknown, expired or already consumed resume tokens
var ErrNotFound = errors.New("suspend session not found")

// Suspended records a candidate who left the app for the Aadhaar e-Sign redirect
type Suspended struct {
	Token         string    `json:"token"`
	Phone         string    `json:"phone"`
	ApplicationID uuid.UUID `json:"application_id"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store keeps suspend sessions in Redis with a TTL
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates the Redis client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

// NewStore creates a suspend session store
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// TTL returns how long a suspend session lives
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Ping tests the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Save stores the session under a fresh random token and returns it
func (s *Store) Save(ctx context.Context, sess *Suspended) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	sess.Token = token
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to encode suspend session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+token, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store suspend session: %w", err)
	}
	return token, nil
}

// Update rewrites an existing session and keeps its remaining TTL
func (s *Store) Update(ctx context.Context, sess *Suspended) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode suspend session: %w", err)
	}

	ok, err := s.client.SetXX(ctx, keyPrefix+sess.Token, data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update suspend session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Get returns the session without consuming it
func (s *Store) Get(ctx context.Context, token string) (*Suspended, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	data, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	return decode(data, err)
}

// Take returns the session and deletes it atomically
func (s *Store) Take(ctx context.Context, token string) (*Suspended, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	data, err := s.client.GetDel(ctx, keyPrefix+token).Bytes()
	return decode(data, err)
}

// Delete removes the session
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete suspend session: %w", err)
	}
	return nil
}

func decode(data []byte, err error) (*Suspended, error) {
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read suspend session: %w", err)
	}

	var sess Suspended
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode suspend session: %w", err)
	}
	return &sess, nil
}

func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate resume token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
