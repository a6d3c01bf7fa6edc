package orchestrator

import "sync"

// userLocks hands out one mutex per user so components that read-modify-write
// a user's stored state cannot interleave. The worker queue serializes
// messages for one user, but the decay sweep runs outside any queue; both
// paths must hold the user's lock around their Get/Put cycle.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the user's mutex and returns the release function.
func (l *userLocks) acquire(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
