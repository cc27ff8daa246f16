package indexer

import (
	"path/filepath"
	"sync"
)

// ProjectLocks tracks which project roots are being indexed. Runs on
// different roots proceed side by side; a second run on a busy root is
// refused instead of queued.
type ProjectLocks struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// TryAcquire marks root as being indexed. It reports false if a run on the
// same root already holds it.
func (l *ProjectLocks) TryAcquire(root string) bool {
	key := lockKey(root)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.busy[key]; ok {
		return false
	}
	if l.busy == nil {
		l.busy = make(map[string]struct{})
	}
	l.busy[key] = struct{}{}
	return true
}

// Release frees root for the next run.
func (l *ProjectLocks) Release(root string) {
	key := lockKey(root)

	l.mu.Lock()
	delete(l.busy, key)
	l.mu.Unlock()
}

// Held reports whether root is being indexed right now.
func (l *ProjectLocks) Held(root string) bool {
	key := lockKey(root)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.busy[key]
	return ok
}

// lockKey matches the absolute root under which projects are stored
func lockKey(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}
