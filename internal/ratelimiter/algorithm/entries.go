package algorithm

import (
	"sort"
	"sync"
)

// entries is the per-key state arena owned by one limiter. Every access goes
// through mu, so a read-modify-write on a single key is atomic.
type entries[S any] struct {
	sync.Mutex
	m map[string]*S
}

func newEntries[S any]() *entries[S] {
	return &entries[S]{m: make(map[string]*S)}
}

// get returns the state for key or nil. Callers must hold the lock.
func (e *entries[S]) get(key string) *S {
	return e.m[key]
}

// put stores state for key. Callers must hold the lock.
func (e *entries[S]) put(key string, s *S) {
	e.m[key] = s
}

func (e *entries[S]) forget(key string) bool {
	e.Lock()
	defer e.Unlock()
	if _, ok := e.m[key]; !ok {
		return false
	}
	delete(e.m, key)
	return true
}

func (e *entries[S]) len() int {
	e.Lock()
	defer e.Unlock()
	return len(e.m)
}

// sweep drops every entry for which expired returns true and reports how many went.
func (e *entries[S]) sweep(expired func(*S) bool) int {
	e.Lock()
	defer e.Unlock()

	removed := 0
	for key, s := range e.m {
		if expired(s) {
			delete(e.m, key)
			removed++
		}
	}
	return removed
}

// keys returns the stored keys in lexical order. Callers must hold the lock.
func (e *entries[S]) keys() []string {
	keys := make([]string, 0, len(e.m))
	for k := range e.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
