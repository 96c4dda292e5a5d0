package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "actms:"

type redisCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedis connects to the redis server at url (redis://host:port/db).
func NewRedis(ctx context.Context, url string, log *zap.Logger) (Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log = log.Named("cache")
	log.Info("redis cache initialized", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &redisCache{client: client, log: log}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		r.log.Error("redis get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		r.log.Error("redis set failed", zap.String("key", key), zap.Duration("ttl", ttl), zap.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		r.log.Error("redis delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
