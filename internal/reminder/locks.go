package reminder

import "sync"

// habitLocks serializes work per habit id. Entries are dropped once no
// goroutine holds or waits for them.
type habitLocks struct {
	mu    sync.Mutex
	locks map[string]*habitLock
}

type habitLock struct {
	mu   sync.Mutex
	refs int
}

func newHabitLocks() *habitLocks {
	return &habitLocks{locks: make(map[string]*habitLock)}
}

// lock acquires the lock of id and returns its release func.
func (l *habitLocks) lock(id string) func() {
	l.mu.Lock()
	hl, ok := l.locks[id]
	if !ok {
		hl = &habitLock{}
		l.locks[id] = hl
	}
	hl.refs++
	l.mu.Unlock()

	hl.mu.Lock()
	return func() {
		hl.mu.Unlock()

		l.mu.Lock()
		hl.refs--
		if hl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *habitLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
