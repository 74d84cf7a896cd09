package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "crew:cache:"

// Redis keeps one hash per prompt, keyed by the prompt's SHA-256.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to redisURL. ttl <= 0 keeps entries forever.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func redisKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (r *Redis) Get(ctx context.Context, prompt string) (*Entry, error) {
	vals, err := r.rdb.HGetAll(ctx, redisKey(prompt)).Result()
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	e := &Entry{Prompt: prompt, Content: []byte(vals["content"]), Tag: vals["tag"]}
	if ts, err := time.Parse(time.RFC3339Nano, vals["updated_at"]); err == nil {
		e.UpdatedAt = ts
	}
	return e, nil
}

func (r *Redis) Put(ctx context.Context, prompt string, content []byte, tag string) error {
	key := redisKey(prompt)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"prompt", prompt,
		"content", content,
		"tag", tag,
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
