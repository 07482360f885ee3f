package session

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes work per key. Entries are reference counted and
// dropped once the last holder releases, so the map never grows with the
// key space.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// lock blocks until the key is held and returns the release func.
func (km *keyedMutex) lock(key string) func() {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &lockEntry{}
		km.locks[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
