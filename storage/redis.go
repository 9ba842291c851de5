package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/session"
	redislib "github.com/redis/go-redis/v9"
)

var _ Backend = (*RedisBackend)(nil)

const (
	defaultRedisPrefix = "sadsa:session:"
	// Records for tokens without a usable exp still get evicted eventually
	defaultRedisTTL = 24 * time.Hour
)

// RedisBackend stores records as JSON with a TTL that ends at the token's exp
type RedisBackend struct {
	client  *redislib.Client
	prefix  string
	nowTime func() time.Time
}

type RedisOption func(*RedisBackend)

func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisBackend) {
		r.prefix = prefix
	}
}

// WithRedisClock sets the now time function used to derive TTLs
func WithRedisClock(nowFunc func() time.Time) RedisOption {
	return func(r *RedisBackend) {
		r.nowTime = nowFunc
	}
}

// NewRedisBackend creates a Redis-backed scope backend
func NewRedisBackend(client *redislib.Client, options ...RedisOption) *RedisBackend {
	r := &RedisBackend{
		client:  client,
		prefix:  defaultRedisPrefix,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// NewRedisClient parses a redis:// URL and pings the server
func NewRedisClient(ctx context.Context, url string) (*redislib.Client, error) {
	opts, err := redislib.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redislib.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisBackend) Load(ctx context.Context, holder string) (*session.Record, error) {
	result, err := r.client.Get(ctx, r.key(holder)).Result()
	if err != nil {
		if err == redislib.Nil {
			return nil, errors.ErrScopeEmpty
		}
		return nil, errors.Wrapf(err, "redis get")
	}

	var rec session.Record
	if err := json.Unmarshal([]byte(result), &rec); err != nil {
		return nil, errors.Wrapf(err, "corrupt session record")
	}
	return &rec, nil
}

func (r *RedisBackend) Save(ctx context.Context, holder string, record *session.Record) error {
	if holder == "" || record == nil {
		return errors.ErrInvalidInput
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	ttl := defaultRedisTTL
	if record.User.ExpiresAt > 0 {
		ttl = time.Unix(record.User.ExpiresAt, 0).Sub(r.nowTime())
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	// Replace the previous record and set its TTL atomically
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(holder))
	pipe.Set(ctx, r.key(holder), payload, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "redis save")
	}
	return nil
}

// Clear deletes the holder's record. Deleting a missing key is not an error.
func (r *RedisBackend) Clear(ctx context.Context, holder string) error {
	if err := r.client.Del(ctx, r.key(holder)).Err(); err != nil {
		return errors.Wrapf(err, "redis del")
	}
	return nil
}

func (r *RedisBackend) key(holder string) string {
	return fmt.Sprintf("%s%s", r.prefix, holder)
}
