// Package cache memoizes text verdicts, which are deterministic for a given
// text and explain flag.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "slopdetect:text:"

// Cache stores JSON values by key.
type Cache interface {
	// Get decodes a cached value into target and reports whether it was found.
	Get(ctx context.Context, key string, target any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Close() error
}

// TextKey identifies a text request.
func TextKey(text string, explain bool) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%t:%s", keyPrefix, explain, hex.EncodeToString(sum[:]))
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, any) error { return nil }
func (Noop) Close() error { return nil }

// Redis keeps entries for a fixed TTL.
type Redis struct {
	logger zerolog.Logger
	rdb    *redis.Client
	ttl    time.Duration
}

// NewRedis parses url, connects and pings.
func NewRedis(logger zerolog.Logger, url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info().Str("addr", opt.Addr).Dur("ttl", ttl).Msg("redis cache connected")

	return &Redis{
		logger: logger.With().Str("component", "cache").Logger(),
		rdb:    rdb,
		ttl:    ttl,
	}, nil
}

// Get reads and decodes key. A missing key is not an error.
func (c *Redis) Get(ctx context.Context, key string, target any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("decode cached value: %w", err)
	}
	return true, nil
}

// Set stores value as JSON.
func (c *Redis) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}

// Close closes the connection.
func (c *Redis) Close() error {
	return c.rdb.Close()
}
