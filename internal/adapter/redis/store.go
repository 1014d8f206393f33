// Package redis persists geocache entries in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/geocache"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces geocache keys.
const DefaultKeyPrefix = "geocache:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a Redis connection pool.
func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// Store implements geocache.Store. Entries are JSON values without expiry.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// NewStore wraps a Redis client. An empty prefix uses DefaultKeyPrefix.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Get fetches all addresses with a single MGET. Undecodable values are
// reported as absent so the cache refetches and overwrites them.
func (s *Store) Get(ctx context.Context, addresses []string) (map[string]geocache.Entry, error) {
	found := make(map[string]geocache.Entry, len(addresses))
	if len(addresses) == 0 {
		return found, nil
	}

	keys := make([]string, len(addresses))
	for i, addr := range addresses {
		keys[i] = s.key(addr)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e geocache.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		found[addresses[i]] = e
	}
	return found, nil
}

func (s *Store) Put(ctx context.Context, entry geocache.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode geocache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(entry.Address), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, s.key(address)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store) key(address string) string {
	return s.prefix + address
}
