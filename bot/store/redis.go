package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
)

// RedisKV implements the KV interface using Redis.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr string, password string, db int) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisKV{client: client}, nil
}

// NewRedisKVFromClient wraps an existing client. Tests pass a miniredis-backed
// client through here.
func NewRedisKVFromClient(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	defer func() {
		observability.RedisLatency.Observe(time.Since(start).Seconds())
	}()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	start := time.Now()
	defer func() {
		observability.RedisLatency.Observe(time.Since(start).Seconds())
	}()

	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisKV) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	start := time.Now()
	defer func() {
		observability.RedisLatency.Observe(time.Since(start).Seconds())
	}()

	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// Incr increments the counter and sets the window TTL only when the counter
// was just created, so the window does not slide on every request.
func (s *RedisKV) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()
	defer func() {
		observability.RedisLatency.Observe(time.Since(start).Seconds())
	}()

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer func() {
		observability.RedisLatency.Observe(time.Since(start).Seconds())
	}()

	return s.client.Del(ctx, key).Err()
}

func (s *RedisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis reports -1 (no expiry) and -2 (missing) as negative durations.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *RedisKV) Close() error {
	return s.client.Close()
}
