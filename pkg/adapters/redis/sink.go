// Package redis provides a Redis-backed ResultSink.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/docweave/docweave/pkg/domain"
)

// Sink implements ports.ResultSink on Redis. Records are stored as JSON
// under prefix+logical-key, so retries with the same key overwrite.
type Sink struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Sink.
type Option func(*Sink)

// WithTTL sets an expiration for stored records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for records.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// New creates a Redis sink with its own client.
func New(address, password string, db int, opts ...Option) *Sink {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis sink from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Sink {
	s := &Sink{
		client: client,
		prefix: "docweave:result:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store persists the record and returns its locator.
func (s *Sink) Store(ctx context.Context, rec domain.ResultRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	key := s.prefix + rec.LogicalKey()
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to save to redis: %w", err)
	}

	return "redis://" + key, nil
}

// Load retrieves a stored record by logical key.
func (s *Sink) Load(ctx context.Context, logicalKey string) (domain.ResultRecord, error) {
	val, err := s.client.Get(ctx, s.prefix+logicalKey).Result()
	if err != nil {
		if err == backend.Nil {
			return domain.ResultRecord{}, domain.ErrRecordNotFound
		}
		return domain.ResultRecord{}, fmt.Errorf("failed to load from redis: %w", err)
	}

	var rec domain.ResultRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return domain.ResultRecord{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}
