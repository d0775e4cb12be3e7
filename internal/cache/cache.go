// Package cache provides a bounded in-memory TTL store for marshaled
// JSON responses. Entries expire ttl after they were written and the
// store never holds more than maxSize entries; when full, the least
// recently used entry is evicted.
//
// Concurrent misses for the same key are not deduplicated: both callers
// go upstream and the last write wins. The store only guarantees that
// each individual operation is atomic.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type entry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// Store is a TTL + LRU bounded cache of JSON blobs.
type Store struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry]
	ttl time.Duration
	now func() time.Time
}

// New creates a Store with the given entry TTL and capacity.
func New(ttl time.Duration, maxSize int) (*Store, error) {
	return NewWithClock(ttl, maxSize, time.Now)
}

// NewWithClock creates a Store that reads time from now. Tests inject a
// fake clock to exercise expiry deterministically.
func NewWithClock(ttl time.Duration, maxSize int, now func() time.Time) (*Store, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	l, err := simplelru.NewLRU[string, entry](maxSize, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	return &Store{lru: l, ttl: ttl, now: now}, nil
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses. The returned bytes are shared; callers must treat
// them as read-only.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		s.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL, overwriting any previous
// entry. Adding beyond capacity evicts the least recently used key.
func (s *Store) Set(key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(key, entry{value: value, expiresAt: s.now().Add(s.ttl)})
}

// Len returns the number of entries currently held, including any not
// yet evicted expired ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// TTL returns the entry lifetime the store was built with.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
