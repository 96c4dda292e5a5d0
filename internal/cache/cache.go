// Package cache provides a small byte cache with in-process and redis backends.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New builds the backend named by backend ("memory" or "redis").
func New(ctx context.Context, backend, redisURL string, log *zap.Logger) (Cache, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, redisURL, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// GetJSON decodes the cached value at key into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON stores v encoded as JSON.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}
