// Package share publishes exported documents to object storage and keeps short
// share links for them in Redis.
package share

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLinkNotFound indicates an unknown or expired share token.
var ErrLinkNotFound = errors.New("share link not found or expired")

// Link is what a share token resolves to.
type Link struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LinkStore keeps share tokens in Redis with the same TTL as the presigned URL.
type LinkStore struct {
	client *redis.Client
	prefix string
}

// NewLinkStore connects to redisURL and verifies the connection.
func NewLinkStore(redisURL string) (*LinkStore, error) {
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

	return NewLinkStoreWithClient(client), nil
}

// NewLinkStoreWithClient creates a store from an existing Redis client
func NewLinkStoreWithClient(client *redis.Client) *LinkStore {
	return &LinkStore{client: client, prefix: "share:"}
}

func (s *LinkStore) key(token string) string {
	return s.prefix + token
}

// Save stores link under token until link.ExpiresAt.
func (s *LinkStore) Save(ctx context.Context, token string, link Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal share link: %w", err)
	}

	ttl := time.Until(link.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("share link for %s already expired", link.Filename)
	}

	if err := s.client.Set(ctx, s.key(token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save share link: %w", err)
	}
	return nil
}

// Lookup resolves token.
func (s *LinkStore) Lookup(ctx context.Context, token string) (Link, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Link{}, ErrLinkNotFound
	}
	if err != nil {
		return Link{}, fmt.Errorf("lookup share link: %w", err)
	}

	var link Link
	if err := json.Unmarshal(data, &link); err != nil {
		return Link{}, fmt.Errorf("unmarshal share link: %w", err)
	}
	return link, nil
}

// Revoke deletes token. The presigned URL behind it stays valid until it expires.
func (s *LinkStore) Revoke(ctx context.Context, token string) error {
	n, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return fmt.Errorf("revoke share link: %w", err)
	}
	if n == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (s *LinkStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *LinkStore) Close() error {
	return s.client.Close()
}
