package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenData is the JSON value stored per tenant.
type tokenData struct {
	TenantID    string    `json:"tenant_id"`
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore implements tenant session storage using Redis
type RedisStore struct {
	client *redis.Client
	sealer *Sealer
	prefix string
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string, sealer *Sealer) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, sealer), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, sealer *Sealer) *RedisStore {
	return &RedisStore{
		client: client,
		sealer: sealer,
		prefix: "tenant:",
	}
}

func (s *RedisStore) key(tenantID string) string {
	return s.prefix + tenantID
}

// SaveTenantSession stores the tenant's offline session. Offline sessions do
// not expire; they are removed by RevokeTenantSession on uninstall.
func (s *RedisStore) SaveTenantSession(ctx context.Context, rec Record) error {
	if rec.TenantID == "" {
		return errors.New("tenant id is required")
	}
	sealed, err := s.sealer.Seal(rec.AccessToken)
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	jsonData, err := json.Marshal(tokenData{
		TenantID:    rec.TenantID,
		AccessToken: sealed,
		Scope:       rec.Scope,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return fmt.Errorf("marshal tenant session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(rec.TenantID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("save tenant session: %w", err)
	}
	return nil
}

// LookupTenantSession returns ErrNotFound when the tenant has no session.
func (s *RedisStore) LookupTenantSession(ctx context.Context, tenantID string) (Record, error) {
	jsonData, err := s.client.Get(ctx, s.key(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup tenant session: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return Record{}, fmt.Errorf("unmarshal tenant session: %w", err)
	}
	token, err := s.sealer.Open(data.AccessToken)
	if err != nil {
		return Record{}, err
	}

	return Record{
		TenantID:    data.TenantID,
		AccessToken: token,
		Scope:       data.Scope,
		CreatedAt:   data.CreatedAt,
	}, nil
}

// RevokeTenantSession deletes the tenant's session
func (s *RedisStore) RevokeTenantSession(ctx context.Context, tenantID string) error {
	if err := s.client.Del(ctx, s.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("revoke tenant session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
