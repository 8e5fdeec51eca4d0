// Package locker serializes resolves that touch the same identity. Two
// concurrent resolves sharing an email or phone would otherwise both take
// the no-match path and create duplicate primaries, or race on demoting the
// same primary.
package locker

import (
	"context"
	"sort"
	"sync"
)

// Locker grants exclusive access to a set of identity keys for the duration
// of a resolve. Implementations must acquire keys in sorted order so two
// resolves sharing keys cannot deadlock.
type Locker interface {
	// Acquire blocks until every key is held or ctx expires. On success it
	// returns a release function that must be called exactly once.
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// Memory is a process-local Locker backed by per-key mutexes. Suitable for
// single-instance deployments; multi-instance deployments need the Redis
// implementation.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemory constructs a process-local locker.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*sync.Mutex)}
}

func (m *Memory) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			releaseAll(held)
			return nil, err
		}
		l := m.lockFor(key)
		l.Lock()
		held = append(held, l)
	}
	var once sync.Once
	return func() {
		once.Do(func() { releaseAll(held) })
	}, nil
}

func (m *Memory) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func releaseAll(held []*sync.Mutex) {
	for i := len(held) - 1; i >= 0; i-- {
		held[i].Unlock()
	}
}

// sortedUnique normalizes the key set: duplicates collapse and ordering is
// deterministic across callers.
func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
