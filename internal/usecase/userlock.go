package usecase

import "sync"

// userLocks serializes concurrent issuance requests by the same user.
type userLocks struct {
	mu sync.Mutex
	m  map[int64]*entry
}

type entry struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks { return &userLocks{m: map[int64]*entry{}} }

// lock acquires the per-user mutex and returns its unlock func. Entries
// are reference-counted so the map does not grow with the user base.
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	e, ok := l.m[userID]
	if !ok {
		e = &entry{}
		l.m[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, userID)
		}
		l.mu.Unlock()
	}
}
