package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard holds short-lived claims so one browser cannot run the same action
// twice at once. Claim reports false while an unexpired claim on key exists.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

func (s *RedisStore) claimKey(key string) string {
	return fmt.Sprintf("docbook:inflight:%s", key)
}

// Claim sets the claim key with SET NX and a TTL, so an abandoned claim
// lapses on its own.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.claim")
	defer span.End()

	ok, err := s.redis.SetNX(ctx, s.claimKey(key), 1, ttl).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: claim: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "session.release")
	defer span.End()

	if err := s.redis.Del(ctx, s.claimKey(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: release claim: %w", err)
	}
	return nil
}

// MemoryGuard keeps claims in process memory. Used with MemoryStore and any
// store that is not a Guard itself.
type MemoryGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claims: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.claims[key]; ok && now.Before(until) {
		return false, nil
	}
	for k, until := range g.claims {
		if !now.Before(until) {
			delete(g.claims, k)
		}
	}
	g.claims[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
	return nil
}
