package payment

import (
	"sync"

	"github.com/google/uuid"
)

// orderLocks serializes payment-state mutation per order so the
// synchronous verify path and the asynchronous webhook path cannot apply
// their effects concurrently for the same order.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[uuid.UUID]*orderLock)}
}

// Acquire blocks until the order's lock is held and returns the release
// function. Locks are dropped from the table once no caller holds or
// waits on them.
func (l *orderLocks) Acquire(orderID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[orderID]
	if !ok {
		entry = &orderLock{}
		l.locks[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, orderID)
		}
		l.mu.Unlock()
	}
}
