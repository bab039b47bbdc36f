package reservation

import "sync"

// slotLocks hands out one mutex per slot id so operations on different
// slots never contend. Entries are reference-counted and dropped when the
// last holder releases, keeping the map bounded by in-flight slots.
type slotLocks struct {
	mu    sync.Mutex
	locks map[int64]*slotLock
}

type slotLock struct {
	sync.Mutex
	refs int
}

func newSlotLocks() *slotLocks {
	return &slotLocks{locks: make(map[int64]*slotLock)}
}

func (g *slotLocks) acquire(id int64) *slotLock {
	g.mu.Lock()
	l := g.locks[id]
	if l == nil {
		l = &slotLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return l
}

func (g *slotLocks) release(id int64, l *slotLock) {
	l.Unlock()

	g.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(g.locks, id)
	}
	g.mu.Unlock()
}
