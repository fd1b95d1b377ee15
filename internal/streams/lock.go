package streams

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NonReentrantLock is a mutex which knows the goroutine holding it. A goroutine trying to acquire the lock it
// already holds gets a ReentrancyError instead of deadlocking.
type NonReentrantLock struct {
	mutex sync.Mutex
	owner uint64 // goroutine id of the holder, 0 when free
	Name  string // used in the reentrancy error message
}

// Lock acquires the lock. It blocks while another goroutine holds it.
func (l *NonReentrantLock) Lock() error {
	me := goroutineID()
	if !l.mutex.TryLock() {
		if atomic.LoadUint64(&l.owner) == me {
			err := &ReentrancyError{Stream: l.Name}
			log.WithError(err).Warnf("Reentrant call detected on %v", l.Name)
			return errors.WithStack(err)
		}
		l.mutex.Lock()
	}
	atomic.StoreUint64(&l.owner, me)
	return nil
}

// Unlock releases the lock
func (l *NonReentrantLock) Unlock() {
	atomic.StoreUint64(&l.owner, 0)
	l.mutex.Unlock()
}

// owned returns true if the calling goroutine holds the lock
func (l *NonReentrantLock) owned() bool {
	return atomic.LoadUint64(&l.owner) == goroutineID()
}

// goroutineID returns the id of the calling goroutine. Ids start at 1, so 0 marks a free lock.
func goroutineID() uint64 {
	return uint64(goid.Get())
}
