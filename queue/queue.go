package queue

import "sync"

// Queue is a FIFO buffer of script file paths. It is safe for concurrent
// use by one producer and one consumer.
type Queue struct {
	mu    sync.Mutex
	items []string
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a path to the tail of the queue.
func (q *Queue) Enqueue(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, path)
}

// DrainAll atomically removes and returns every queued path in insertion
// order. The queue is left empty. Draining an empty queue returns nil.
func (q *Queue) DrainAll() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued paths.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
