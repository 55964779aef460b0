package tgui

import (
	"sync"
	"time"
)

// TTLMap is an in-memory map whose entries expire ttl after their last Put.
// Expired entries are dropped lazily and by a periodic O(n) sweep.
type TTLMap[K comparable, V any] struct {
	mu  sync.Mutex
	ttl time.Duration
	max int
	now func() time.Time

	cleanupInterval time.Duration
	nextCleanup     time.Time

	m map[K]ttlEntry[V]
}

type ttlEntry[V any] struct {
	v   V
	exp time.Time
}

// NewTTLMap creates a map with the given ttl (15m when <= 0) and at most
// 5000 live entries.
func NewTTLMap[K comparable, V any](ttl time.Duration) *TTLMap[K, V] {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TTLMap[K, V]{
		ttl:             ttl,
		max:             5000,
		now:             time.Now,
		cleanupInterval: time.Minute,
		m:               map[K]ttlEntry[V]{},
	}
}

// WithClock replaces time.Now, for tests.
func (s *TTLMap[K, V]) WithClock(now func() time.Time) *TTLMap[K, V] {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *TTLMap[K, V]) WithMax(n int) *TTLMap[K, V] {
	if n > 0 {
		s.mu.Lock()
		s.max = n
		s.mu.Unlock()
	}
	return s
}

// SetTTL changes the ttl for entries stored from now on.
func (s *TTLMap[K, V]) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

func (s *TTLMap[K, V]) Put(k K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.maybeCleanupLocked(now)
	if _, ok := s.m[k]; !ok && len(s.m) >= s.max {
		s.evictOldestLocked()
	}
	s.m[k] = ttlEntry[V]{v: v, exp: now.Add(s.ttl)}
}

func (s *TTLMap[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.maybeCleanupLocked(now)
	e, ok := s.m[k]
	if !ok {
		var zero V
		return zero, false
	}
	if now.After(e.exp) {
		delete(s.m, k)
		var zero V
		return zero, false
	}
	return e.v, true
}

func (s *TTLMap[K, V]) Delete(k K) {
	s.mu.Lock()
	delete(s.m, k)
	s.mu.Unlock()
}

// Len counts entries including expired ones not yet swept.
func (s *TTLMap[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *TTLMap[K, V]) maybeCleanupLocked(now time.Time) {
	if s.nextCleanup.IsZero() {
		s.nextCleanup = now.Add(s.cleanupInterval)
		return
	}
	if now.Before(s.nextCleanup) {
		return
	}
	for k, e := range s.m {
		if now.After(e.exp) {
			delete(s.m, k)
		}
	}
	s.nextCleanup = now.Add(s.cleanupInterval)
}

func (s *TTLMap[K, V]) evictOldestLocked() {
	var (
		oldest K
		exp    time.Time
		found  bool
	)
	for k, e := range s.m {
		if !found || e.exp.Before(exp) {
			oldest, exp, found = k, e.exp, true
		}
	}
	if found {
		delete(s.m, oldest)
	}
}
