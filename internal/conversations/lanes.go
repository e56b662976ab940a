package conversations

import "sync"

// lanes serializes work per key. Entries are dropped once no holder or waiter remains.
type lanes struct {
	mu    sync.Mutex
	locks map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

func newLanes() *lanes {
	return &lanes{locks: make(map[string]*lane)}
}

// lock blocks until key is free and returns its release func.
func (l *lanes) lock(key string) func() {
	l.mu.Lock()
	ln, ok := l.locks[key]
	if !ok {
		ln = &lane{}
		l.locks[key] = ln
	}
	ln.refs++
	l.mu.Unlock()

	ln.mu.Lock()
	return func() {
		ln.mu.Unlock()
		l.mu.Lock()
		ln.refs--
		if ln.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *lanes) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
