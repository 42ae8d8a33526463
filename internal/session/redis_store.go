package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps each token pair in a hash with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed store. A zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("docbook.internal.session"),
	}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("docbook:session:%s", id)
}

func (s *RedisStore) Load(ctx context.Context, id string) (Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	values, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		span.RecordError(err)
		return Tokens{}, fmt.Errorf("session: load tokens: %w", err)
	}
	if len(values) == 0 {
		return Tokens{}, nil
	}
	if s.ttl > 0 {
		if err := s.redis.Expire(ctx, s.key(id), s.ttl).Err(); err != nil {
			span.RecordError(err)
			return Tokens{}, fmt.Errorf("session: refresh ttl: %w", err)
		}
	}
	return Tokens{Access: values[AccessTokenKey], Refresh: values[RefreshTokenKey]}, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, tokens Tokens) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	key := s.key(id)
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, AccessTokenKey, tokens.Access, RefreshTokenKey, tokens.Refresh)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.clear")
	defer span.End()

	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete tokens: %w", err)
	}
	return nil
}
