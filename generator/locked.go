package generator

import "sync"

// Locked serializes calls to Next of the wrapped iterator so several
// goroutines can share one generator. The lock is held for a whole batch,
// including the shuffle and every source fetch.
type Locked struct {
	mu sync.Mutex
	it Iterator
}

func NewLocked(it Iterator) *Locked {
	return &Locked{it: it}
}

func (l *Locked) Next() (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.it.Next()
}
