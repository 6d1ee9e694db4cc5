package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/metrics"
	"github.com/vilaw/backend/pkg/logger"
	"github.com/vilaw/backend/pkg/utils"
)

const (
	responsePrefix = "chat:"
	cacheType      = "chat_response"
)

// Client caches rendered chat responses keyed by the normalized input. Entries are
// dropped wholesale after every learning cycle because ranking may have changed.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return New(client, ttl), nil
}

func New(client *redis.Client, ttl time.Duration) *Client {
	return &Client{client: client, ttl: ttl}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ResponseKey is stable across case and whitespace differences in the input.
func ResponseKey(input string) string {
	return responsePrefix + utils.HashString(utils.NormalizeQuery(input))
}

func (c *Client) SetResponse(ctx context.Context, input string, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	key := ResponseKey(input)
	err = c.client.Set(ctx, key, data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set response cache: %w", err)
	}

	logger.Debug("Response cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

// GetResponse decodes a cached response into dst and reports whether one existed.
func (c *Client) GetResponse(ctx context.Context, input string, dst interface{}) (bool, error) {
	key := ResponseKey(input)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, fmt.Errorf("failed to get response cache: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	logger.Debug("Response cache hit", zap.String("key", key))
	return true, nil
}

func (c *Client) InvalidateResponses(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, responsePrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Response cache invalidated", zap.Int("keys", deleted))
	return nil
}
