// Package memory provides an in-process cache backend for standalone mode.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/syntrixbase/tripsync/internal/cache"
)

// entry is a single key with its expiry.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func lessFunc(a, b entry) bool {
	return a.key < b.key
}

// Store keeps entries in a btree ordered by key, so prefix scans walk a
// contiguous range. Expired entries are dropped lazily on read and by a
// periodic sweep.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
	now  func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

var _ cache.Backend = (*Store)(nil)

// New creates a Store. A positive sweepInterval starts the background sweeper.
func New(sweepInterval time.Duration) *Store {
	s := &Store{
		tree:   btree.NewG[entry](32, lessFunc),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	if sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Get returns the value for key or cache.ErrMiss.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.tree.Get(entry{key: key})
	s.mu.RUnlock()

	if !ok || e.expired(s.now()) {
		return nil, cache.ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key. A non-positive ttl never expires.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{key: key, value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.tree.ReplaceOrInsert(e)
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	s.tree.Delete(entry{key: key})
	s.mu.Unlock()
	return nil
}

// Scan returns the values of live keys starting with prefix, in key order.
func (s *Store) Scan(_ context.Context, prefix string) ([][]byte, error) {
	now := s.now()
	var out [][]byte

	s.mu.RLock()
	s.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !strings.HasPrefix(e.key, prefix) {
			return false
		}
		if !e.expired(now) {
			out = append(out, append([]byte(nil), e.value...))
		}
		return true
	})
	s.mu.RUnlock()

	return out, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Sweep removes expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []entry
	s.tree.Ascend(func(e entry) bool {
		if e.expired(now) {
			stale = append(stale, e)
		}
		return true
	})
	for _, e := range stale {
		s.tree.Delete(e)
	}
	return len(stale)
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the sweeper.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return nil
}
