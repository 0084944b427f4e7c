package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCache connects and pings Redis, retrying with exponential backoff
// for up to maxWait before giving up.
func NewRedisCache(ctx context.Context, addr, password string, db int, maxWait time.Duration, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	logger = logger.With("component", "redis_cache")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = maxWait

	err := backoff.RetryNotify(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.Warn("redis not reachable, retrying", "addr", addr, "in", d, "error", err)
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: "fahrplan:",
		logger: logger,
	}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, c.key(key), value, ttl).Err()
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
		return err
	}
	c.logger.Debug("cache set", "key", key, "size_bytes", len(value), "ttl", ttl, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Get returns nil, nil on a miss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, err
	}
	c.logger.Debug("cache hit", "key", key, "size_bytes", len(val), "duration_ms", time.Since(start).Milliseconds())
	return val, nil
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

func (c *RedisCache) SetJSONCompressed(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	compressed, err := gzipCompress(data)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	c.logger.Debug("compressed data", "key", key, "original_size", len(data), "compressed_size", len(compressed))
	return c.Set(ctx, key, compressed, ttl)
}

func (c *RedisCache) GetJSONCompressed(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	raw, err := gzipDecompress(data)
	if err != nil {
		return false, fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
