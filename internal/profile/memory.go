package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gzhole/fortress/internal/policy"
)

var errEmptyUserID = errors.New("empty user id")

// MemoryStore is a thread-safe in-process profile store. Profiles are
// evicted least-recently-used once capacity is reached, and expire ttl
// after their last recorded attempt. For multi-instance deployments use
// RedisStore.
//
// A MemoryStore is meant to live as long as the process: the underlying
// expirable LRU runs a cleanup goroutine that Close cannot stop. Create one
// per process and share it.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, Profile]
	now   func() time.Time
}

// NewMemoryStore creates a memory store. capacity <= 0 and ttl <= 0 fall
// back to DefaultCapacity and DefaultTTL.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, Profile](capacity, nil, ttl),
		now:   time.Now,
	}
}

func (s *MemoryStore) RecordAttempt(_ context.Context, userID string, categories []policy.Category) (Profile, error) {
	if userID == "" {
		return Profile{}, errEmptyUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.cache.Get(userID)
	if ok {
		p = p.clone()
	} else {
		p = Empty(userID)
	}
	p.apply(categories, s.now())
	s.cache.Add(userID, p)

	return p.clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.cache.Peek(userID)
	if !ok {
		return Empty(userID), nil
	}
	return p.clone(), nil
}

// Len returns the number of live profiles.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close drops every profile. The LRU's cleanup goroutine keeps running, so
// do not create and close stores in a loop.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	return nil
}
