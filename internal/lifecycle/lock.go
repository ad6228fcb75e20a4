package lifecycle

import "sync"

// instanceLocks serializes transitions per instance identifier across every
// Controller in the process.
var instanceLocks = &keyedMutex{locks: make(map[string]*sync.Mutex)}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
