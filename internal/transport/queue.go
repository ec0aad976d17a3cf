package transport

import "sync"

// Callback is one deferred listener invocation.
type Callback func(Listener)

// Queue buffers callbacks produced on I/O goroutines until the owner drains
// them. Safe for concurrent Push.
type Queue struct {
	mu    sync.Mutex
	items []Callback
}

// Push appends a callback.
func (q *Queue) Push(cb Callback) {
	q.mu.Lock()
	q.items = append(q.items, cb)
	q.mu.Unlock()
}

// Drain delivers every queued callback to l in order. Callbacks pushed while
// draining are delivered in the same call.
func (q *Queue) Drain(l Listener) int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return n
		}
		cb := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		if l != nil {
			cb(l)
		}
		n++
	}
}

// Len returns the number of pending callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
