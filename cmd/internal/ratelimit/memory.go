package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const memoryShards = 64

// MemoryStore keeps counters in process memory, split across shards so that
// unrelated clients rarely contend on the same mutex.
type MemoryStore struct {
	shards [memoryShards]memoryShard
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	index   int64
	count   int64
	resetAt time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]memoryEntry)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	return &s.shards[xxhash.Sum64String(key)%memoryShards]
}

// Increment implements Store. A counter from an earlier window is replaced.
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}

	idx, resetAt := windowBounds(window, now)
	sh := s.shard(key)

	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok || e.index != idx {
		e = memoryEntry{index: idx, resetAt: resetAt}
	}
	e.count++
	sh.entries[key] = e
	sh.mu.Unlock()

	return Counter{Count: e.count, ResetAt: e.resetAt}, nil
}

// Sweep drops counters whose window ended at or before now and returns how
// many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, e := range sh.entries {
			if !now.Before(e.resetAt) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of live counters.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// RunJanitor sweeps every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
