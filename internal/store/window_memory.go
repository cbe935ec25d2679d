package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/serroba/guild-stats/internal/ratelimit"
)

// ErrInvalidRange is returned for negative ranks, which only Redis understands.
var ErrInvalidRange = errors.New("rank range must be non-negative")

type memorySet struct {
	entries   []ratelimit.Entry // sorted by score, then member
	expiresAt time.Time         // zero means no expiry
}

// MemoryWindowStore is an in-memory implementation of ratelimit.WindowStore.
// It only limits callers served by the same process.
type MemoryWindowStore struct {
	mu   sync.Mutex
	sets map[string]*memorySet
	now  func() time.Time
}

// NewMemoryWindowStore creates a new in-memory window store. A nil clock uses time.Now.
func NewMemoryWindowStore(now func() time.Time) *MemoryWindowStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryWindowStore{
		sets: make(map[string]*memorySet),
		now:  now,
	}
}

// live returns the set at key, dropping it if its TTL has passed. Callers hold mu.
func (s *MemoryWindowStore) live(key string) *memorySet {
	set, ok := s.sets[key]
	if !ok {
		return nil
	}

	if !set.expiresAt.IsZero() && !s.now().Before(set.expiresAt) {
		delete(s.sets, key)

		return nil
	}

	return set
}

func (s *MemoryWindowStore) RemoveRangeByScore(_ context.Context, key string, minScore, maxScore float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(key)
	if set == nil {
		return nil
	}

	set.entries = slices.DeleteFunc(set.entries, func(e ratelimit.Entry) bool {
		return e.Score >= minScore && e.Score <= maxScore
	})

	if len(set.entries) == 0 {
		delete(s.sets, key)
	}

	return nil
}

func (s *MemoryWindowStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(key)
	if set == nil {
		return 0, nil
	}

	return int64(len(set.entries)), nil
}

func (s *MemoryWindowStore) RangeWithScores(_ context.Context, key string, start, stop int64) ([]ratelimit.Entry, error) {
	if start < 0 || stop < 0 {
		return nil, ErrInvalidRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(key)
	if set == nil || start > stop || start >= int64(len(set.entries)) {
		return []ratelimit.Entry{}, nil
	}

	stop = min(stop, int64(len(set.entries))-1)

	return slices.Clone(set.entries[start : stop+1]), nil
}

func (s *MemoryWindowStore) Add(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(key)
	if set == nil {
		set = &memorySet{}
		s.sets[key] = set
	}

	// Re-adding a member moves it to the new score.
	set.entries = slices.DeleteFunc(set.entries, func(e ratelimit.Entry) bool {
		return e.Member == member
	})

	entry := ratelimit.Entry{Member: member, Score: score}
	idx, _ := slices.BinarySearchFunc(set.entries, entry, compareEntries)
	set.entries = slices.Insert(set.entries, idx, entry)

	return nil
}

func (s *MemoryWindowStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.live(key)
	if set == nil {
		return nil
	}

	if ttl <= 0 {
		delete(s.sets, key)

		return nil
	}

	set.expiresAt = s.now().Add(ttl)

	return nil
}

// Sweep drops every key whose TTL has passed and returns how many were dropped.
func (s *MemoryWindowStore) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var removed int64

	for key, set := range s.sets {
		if !set.expiresAt.IsZero() && !now.Before(set.expiresAt) {
			delete(s.sets, key)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of keys held, expired or not.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sets)
}

// Ping always succeeds; the store lives in process.
func (s *MemoryWindowStore) Ping(_ context.Context) error {
	return nil
}

func compareEntries(a, b ratelimit.Entry) int {
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}

	return cmp.Compare(a.Member, b.Member)
}

// Compile-time checks.
var (
	_ ratelimit.WindowStore = (*MemoryWindowStore)(nil)
	_ Sweeper               = (*MemoryWindowStore)(nil)
)
