package reconcile

import (
	"sync"

	"github.com/stockline/backoffice/internal/stock"
)

// keyLocks serialises writes per stock key. Entries are dropped once unused.
type keyLocks struct {
	mu    sync.Mutex
	locks map[stock.Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[stock.Key]*keyLock)}
}

func (k *keyLocks) lock(key stock.Key) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
