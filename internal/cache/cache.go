// internal/cache/cache.go
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github-repo-etl/internal/errors"
)

// Mirror keeps serialized copies of relations in Redis.
type Mirror struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL is applied to every entry. Zero keeps entries until overwritten.
	TTL time.Duration
}

// New connects to Redis and checks that it answers.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Mirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		logger.Error("Redis connection is not ready", "addr", opts.Addr, "error", err)
		return nil, &apperrors.CacheError{Err: err}
	}
	logger.Info("Redis connection successful", "addr", opts.Addr)
	return &Mirror{rdb: rdb, ttl: opts.TTL, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (m *Mirror) Close() error {
	return m.rdb.Close()
}

// Put encodes v and stores it under key.
func (m *Mirror) Put(ctx context.Context, key string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return &apperrors.CacheError{Key: key, Err: err}
	}
	if err := m.rdb.Set(ctx, key, buf.Bytes(), m.ttl).Err(); err != nil {
		m.logger.Error("Error while storing data in Redis", "key", key, "error", err)
		return &apperrors.CacheError{Key: key, Err: err}
	}
	m.logger.Info("Data stored in Redis successfully", "key", key, "bytes", buf.Len())
	return nil
}

// Get loads the entry stored under key into dst, which must be a pointer to
// the type that was passed to Put.
func (m *Mirror) Get(ctx context.Context, key string, dst any) error {
	blob, err := m.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &apperrors.CacheMissError{Key: key}
	}
	if err != nil {
		m.logger.Error("Error while getting data from Redis", "key", key, "error", err)
		return &apperrors.CacheError{Key: key, Err: err}
	}
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(dst); err != nil {
		return &apperrors.DeserializeError{Key: key, Err: err}
	}
	m.logger.Info("Data loaded from Redis successfully", "key", key)
	return nil
}
