package merge

import (
	"fmt"
	"sync"
)

// Locks is the in-process registry of record ids held by pending merges.
// Concurrent merges over overlapping record sets are unsafe, so a second
// merge touching any held id is rejected rather than queued.
type Locks struct {
	mu   sync.Mutex
	held map[string]string // record id -> group key holding it
}

// NewLocks returns an empty lock registry.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]string)}
}

// Acquire claims every id for groupKey, or fails without claiming any if
// one is already held. A held id rejects even a caller reusing the same
// group key: a duplicate submit of a pending merge must not interleave
// with it.
func (l *Locks) Acquire(groupKey string, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if owner, ok := l.held[id]; ok {
			return fmt.Errorf("record %s is locked by merge %s", id, owner)
		}
	}
	for _, id := range ids {
		l.held[id] = groupKey
	}
	return nil
}

// Release frees every id held by groupKey.
func (l *Locks) Release(groupKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, owner := range l.held {
		if owner == groupKey {
			delete(l.held, id)
		}
	}
}
