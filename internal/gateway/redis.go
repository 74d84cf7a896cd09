package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream round events are appended to.
const DefaultStream = "crew:events"

// RedisStream appends events to a Redis stream so other processes can follow
// rounds with Subscribe.
type RedisStream struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisStream connects to redisURL and verifies the server answers.
func NewRedisStream(ctx context.Context, redisURL, stream string, logger *zap.Logger) (*RedisStream, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{rdb: rdb, stream: stream, maxLen: 10000, logger: logger}, nil
}

func (s *RedisStream) Name() string { return "redis" }

// Publish appends ev to the stream.
func (s *RedisStream) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": string(ev.Type),
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.stream, err)
	}
	s.logger.Debug("published event",
		zap.String("stream", s.stream),
		zap.String("type", string(ev.Type)),
		zap.String("round", ev.RoundID))
	return nil
}

// Subscribe follows the stream from now on. The channel closes when ctx ends.
func (s *RedisStream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := s.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{s.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					s.logger.Warn("stream read failed", zap.String("stream", s.stream), zap.Error(err))
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if json.Unmarshal([]byte(data), &ev) != nil {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (s *RedisStream) Close() error {
	return s.rdb.Close()
}
