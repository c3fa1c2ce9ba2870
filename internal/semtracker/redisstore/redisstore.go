// Package redisstore shares the SEM history between hosts through Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/524D/rgadiag/internal/semtracker"
)

// Store implements semtracker.Store with a Redis string key
type Store struct {
	client *redis.Client
	prefix string
}

var _ semtracker.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithPrefix namespaces all keys, e.g. per instrument
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New wraps an existing client
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Dial connects to the Redis server at url (redis://host:port/db) and
// checks the connection.
func Dial(ctx context.Context, url string, opts ...Option) (*Store, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client, opts...), nil
}

// Get returns the value of key, or semtracker.ErrNotFound
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", semtracker.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return v, nil
}

// Set stores value under key without expiry
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
