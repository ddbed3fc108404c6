package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	count    int64
	expireAt time.Time
}

// MemoryStore 进程内计数，多实例部署需换成 RedisStore
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	calls   int
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry), now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	s.calls++
	if s.calls%1024 == 0 {
		for k, e := range s.entries {
			if !now.Before(e.expireAt) {
				delete(s.entries, k)
			}
		}
	}

	e, ok := s.entries[key]
	if !ok || !now.Before(e.expireAt) {
		e = &memEntry{expireAt: now.Add(ttl)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Len 当前 key 数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
