// Package memory is an in-process store.Store used for tests and for
// running without Redis. Expiry is checked lazily on access.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is a mutex-guarded map implementation of store.Store.
type Store struct {
	mu    sync.Mutex
	data  map[string]entry
	nowFn func() time.Time
}

// New creates a memory store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a memory store with an injectable clock, so TTL
// behavior can be tested without sleeping.
func NewWithClock(nowFn func() time.Time) *Store {
	return &Store{
		data:  make(map[string]entry),
		nowFn: nowFn,
	}
}

func (s *Store) live(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !s.nowFn().Before(e.expiresAt) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.nowFn().Add(ttl)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = entry{value: v, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(key)
	delete(s.data, key)
	return ok, nil
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = entry{value: v, expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if e, ok := s.live(key); ok {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	}
	current += delta
	s.data[key] = entry{
		value:     []byte(strconv.FormatInt(current, 10)),
		expiresAt: s.expiry(ttl),
	}
	return current, nil
}
