package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const redisKeyPrefix = "checkpoint:"

// RedisStore keeps checkpoints in Redis with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("checkpoint: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("scheduling.internal.checkpoint.redis"),
	}
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if err := validID(conversationID); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "checkpoint.redis.load")
	defer span.End()

	raw, err := s.redis.Get(ctx, redisKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("checkpoint: redis load: %w", err)
	}
	return raw, nil
}

func (s *RedisStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if err := validID(conversationID); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "checkpoint.redis.save")
	defer span.End()

	if err := s.redis.Set(ctx, redisKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("checkpoint: redis save: %w", err)
	}
	return nil
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}
