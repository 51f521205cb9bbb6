package limitx

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

func (b *bucket) elapsed(now time.Time) bool {
	return now.Sub(b.windowStart) >= b.window
}

// MemoryStore is the in-process BucketStore. All mutation happens under
// one mutex, which serializes increment-and-compare per key and closes
// the double-admission race at the budget boundary.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (s *MemoryStore) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || b.elapsed(now) {
		s.buckets[key] = &bucket{count: 1, windowStart: now, window: window}
		return 1, nil
	}

	b.count++
	return b.count, nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || b.elapsed(now) {
		return 0, nil
	}
	return b.count, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if b.elapsed(now) {
			delete(s.buckets, key)
		}
	}
	return nil
}
