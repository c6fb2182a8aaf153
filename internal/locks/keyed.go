// Package locks provides per-key try-locks. The ledger keys them by worker
// id and the work order service by order id; both keep critical sections to
// a single read-then-write step so contention surfaces as store.ErrBusy for
// the caller to retry rather than blocking indefinitely.
package locks

import "sync"

// Keyed hands out one mutex per key, created on first use.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// TryLock attempts to acquire the lock for key without blocking. On success
// it returns an unlock func and true.
func (k *Keyed) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}
