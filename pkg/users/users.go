// Package users stores per-user API keys and usage counters in Redis.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	logger *slog.Logger
}

func NewStore(redisURL string, logger *slog.Logger) (*Store, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Store{
		client: redis.NewClient(options),
		logger: logger.With("module", "users"),
	}, nil
}

func apiKeyKey(userID string) string { return "user:" + userID + ":api_key" }
func usageKey(userID string) string  { return "user:" + userID + ":usage" }

// SetAPIKey stores the user's own generation API key. An empty key clears it.
func (s *Store) SetAPIKey(ctx context.Context, userID, apiKey string) error {
	if apiKey == "" {
		if err := s.client.Del(ctx, apiKeyKey(userID)).Err(); err != nil {
			return fmt.Errorf("failed to clear api key: %w", err)
		}

		return nil
	}

	if err := s.client.Set(ctx, apiKeyKey(userID), apiKey, 0).Err(); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}

	return nil
}

// APIKey returns the user's stored key, or "" when none is set.
func (s *Store) APIKey(ctx context.Context, userID string) (string, error) {
	value, err := s.client.Get(ctx, apiKeyKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to load api key: %w", err)
	}

	return value, nil
}

// IncrementUsage bumps the user's generation counter and returns the new total.
func (s *Store) IncrementUsage(ctx context.Context, userID string) (int64, error) {
	total, err := s.client.Incr(ctx, usageKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}

	return total, nil
}

// UsageCount returns the user's generation counter, zero when unset.
func (s *Store) UsageCount(ctx context.Context, userID string) (int64, error) {
	total, err := s.client.Get(ctx, usageKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to load usage: %w", err)
	}

	return total, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
