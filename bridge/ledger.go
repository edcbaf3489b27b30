package bridge

import "sync"

// Ledger is the set of socket descriptors already confirmed protected.
// Membership means the host callback has been asked, and completed, for
// that descriptor, so repeat requests are deduplicated without another
// round-trip to the host.
//
// Safe for concurrent use from engine workers. Clear is only called by the
// lifecycle controller, under its stop sequence, after the running-instance
// registry empties.
type Ledger struct {
	mu  sync.Mutex
	fds map[int]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{fds: make(map[int]struct{})}
}

// Contains reports whether fd is already protected.
func (l *Ledger) Contains(fd int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.fds[fd]
	return ok
}

// Mark records fd as protected.
func (l *Ledger) Mark(fd int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fds[fd] = struct{}{}
}

// Clear forgets all protected descriptors.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.fds)
}

// Len returns the number of protected descriptors.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fds)
}
