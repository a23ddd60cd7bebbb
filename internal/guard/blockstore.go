package guard

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlockStore holds block flags with a fixed TTL. The in-memory implementation
// is per-process; a horizontally scaled deployment needs the Redis-backed one
// so every instance sees the same blocks.
type BlockStore interface {
	// Block marks key blocked until now+ttl. A key already blocked keeps its
	// original expiry: cooldowns are fixed-length from first trigger, never
	// extended by later attempts.
	Block(ctx context.Context, key string, ttl time.Duration) error

	// Blocked reports whether key is blocked and how long until the block
	// expires.
	Blocked(ctx context.Context, key string) (time.Duration, bool, error)
}

// MemoryBlockStore is the default single-instance BlockStore.
type MemoryBlockStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	now    func() time.Time
}

func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryBlockStore) Block(_ context.Context, key string, ttl time.Duration) error {
	now := s.now()
	s.mu.Lock()
	if exp, ok := s.expiry[key]; !ok || !exp.After(now) {
		s.expiry[key] = now.Add(ttl)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryBlockStore) Blocked(_ context.Context, key string) (time.Duration, bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[key]
	if !ok {
		return 0, false, nil
	}
	if !exp.After(now) {
		delete(s.expiry, key)
		return 0, false, nil
	}
	return exp.Sub(now), true, nil
}

// RedisBlockStore shares block flags across instances via SET NX + TTL.
type RedisBlockStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBlockStore(rdb *redis.Client, prefix string) *RedisBlockStore {
	if prefix == "" {
		prefix = "guard:block:"
	}
	return &RedisBlockStore{rdb: rdb, prefix: prefix}
}

func (s *RedisBlockStore) Block(ctx context.Context, key string, ttl time.Duration) error {
	// NX keeps the original expiry if a concurrent trigger already set it.
	return s.rdb.SetNX(ctx, s.prefix+key, 1, ttl).Err()
}

func (s *RedisBlockStore) Blocked(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.rdb.PTTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, false, err
	}
	if ttl <= 0 {
		// -2 missing key, -1 no expiry (should not happen for our keys)
		return 0, false, nil
	}
	return ttl, true, nil
}
