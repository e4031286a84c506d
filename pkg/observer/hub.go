// Package observer provides a minimal synchronous publish/subscribe hub.
package observer

import "sync"

// Hub fans a value out to every registered callback. Delivery is synchronous and
// happens on the publishing goroutine, so callbacks must be cheap.
type Hub[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(T)
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]func(T))
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers v to the current subscribers. Callbacks run without the hub
// lock held, so they may subscribe or unsubscribe.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	if len(h.subs) == 0 {
		h.mu.RUnlock()
		return
	}
	fns := make([]func(T), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len reports the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
