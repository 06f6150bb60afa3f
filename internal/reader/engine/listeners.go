package engine

import (
	"sort"
	"sync"
)

// Listeners is a set of callbacks invoked in subscription order. Emit calls
// listeners outside the lock, so a listener may unsubscribe itself.
type Listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

// Add subscribes fn
func (l *Listeners[T]) Add(fn func(T)) Unsubscribe {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

// Emit calls every listener with v
func (l *Listeners[T]) Emit(v T) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of subscribed listeners
func (l *Listeners[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
