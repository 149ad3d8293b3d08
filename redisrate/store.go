// Package redisrate provides a Redis-backed attempt store so several
// instances share one sliding window of failed sign-in attempts.
package redisrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrovia/go-access"
)

// Config defines the key layout and retention for the attempt store.
type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

// Store persists failed-attempt timestamps in Redis sorted sets, scored
// by nanosecond timestamp so counting a window is a ZCOUNT over a range.
type Store struct {
	client *redis.Client
	cfg    Config
}

// New constructs a store using the provided Redis client and config.
func New(client *redis.Client, cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "access:attempts"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = access.DefaultAttemptWindow * 2
	}
	return &Store{client: client, cfg: cfg}
}

// RecordAttempt stores the timestamp, trims entries that can no longer
// fall inside any window, and refreshes the key TTL.
func (s *Store) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)
	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, member)
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", float64(at.Add(-s.cfg.TTL).UnixNano())))
	pipe.Expire(ctx, key, s.cfg.TTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}

	return nil
}

// CountAttempts returns how many attempts fall inside the window ending
// at the reference time.
func (s *Store) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	key := s.key(identifier)
	min := fmt.Sprintf("%f", float64(reference.Add(-window).UnixNano()))
	max := fmt.Sprintf("%f", float64(reference.UnixNano()))

	count, err := s.client.ZCount(ctx, key, min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// Reset drops every recorded attempt for the identifier.
func (s *Store) Reset(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis reset attempts: %w", err)
	}
	return nil
}

func (s *Store) key(identifier string) string {
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, identifier)
}

var _ access.AttemptStore = (*Store)(nil)
