package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionGuard remembers the response of a completed submission so a
// client retry with the same idempotency key gets the same answer back.
type SubmissionGuard interface {
	Recall(ctx context.Context, userID uint, key string) ([]byte, bool, error)
	Remember(ctx context.Context, userID uint, key string, response []byte) error
}

func submissionCacheKey(userID uint, key string) string {
	return fmt.Sprintf("slangmaster:submission:%d:%s", userID, key)
}

type RedisSubmissionGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSubmissionGuard(client *redis.Client, ttl time.Duration) *RedisSubmissionGuard {
	return &RedisSubmissionGuard{client: client, ttl: ttl}
}

func (g *RedisSubmissionGuard) Recall(ctx context.Context, userID uint, key string) ([]byte, bool, error) {
	val, err := g.client.Get(ctx, submissionCacheKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (g *RedisSubmissionGuard) Remember(ctx context.Context, userID uint, key string, response []byte) error {
	// SetNX keeps the first stored response if two retries race.
	return g.client.SetNX(ctx, submissionCacheKey(userID, key), response, g.ttl).Err()
}

type memoryEntry struct {
	response []byte
	expires  time.Time
}

// MemorySubmissionGuard is the single-process fallback when Redis is not configured.
type MemorySubmissionGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time

	// nextSweep is when Remember next drops expired entries.
	nextSweep time.Time
}

func NewMemorySubmissionGuard(ttl time.Duration) *MemorySubmissionGuard {
	return &MemorySubmissionGuard{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (g *MemorySubmissionGuard) Recall(ctx context.Context, userID uint, key string) ([]byte, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := submissionCacheKey(userID, key)
	entry, ok := g.entries[k]
	if !ok {
		return nil, false, nil
	}
	if g.now().After(entry.expires) {
		delete(g.entries, k)
		return nil, false, nil
	}
	return entry.response, true, nil
}

func (g *MemorySubmissionGuard) Remember(ctx context.Context, userID uint, key string, response []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if !now.Before(g.nextSweep) {
		g.sweep(now)
	}
	k := submissionCacheKey(userID, key)
	if entry, ok := g.entries[k]; ok && now.Before(entry.expires) {
		return nil
	}
	g.entries[k] = memoryEntry{response: response, expires: now.Add(g.ttl)}
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (g *MemorySubmissionGuard) sweep(now time.Time) {
	for k, entry := range g.entries {
		if now.After(entry.expires) {
			delete(g.entries, k)
		}
	}
	g.nextSweep = now.Add(g.ttl)
}
