package monitor

import "sync"

// hostLocks hands out one non-blocking mutex per host. Entries are never
// removed; the host set is fixed by configuration.
type hostLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newHostLocks() *hostLocks {
	return &hostLocks{locks: make(map[string]*sync.Mutex)}
}

// TryLock returns an unlock func and true, or false if the host is busy.
func (h *hostLocks) TryLock(hostID string) (func(), bool) {
	h.mu.Lock()
	l, ok := h.locks[hostID]
	if !ok {
		l = &sync.Mutex{}
		h.locks[hostID] = l
	}
	h.mu.Unlock()

	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}
