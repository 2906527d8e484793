// Package queue provides the pending-script buffer shared between the
// network accept loop and the drain tick.
//
// The queue holds script file paths in arrival order. The accept loop
// appends with Enqueue; the drain tick empties the whole queue at once
// with DrainAll. Both sides may run concurrently.
//
// Basic usage:
//
//	q := queue.New()
//	q.Enqueue("/path/to/script.lua")
//	for _, path := range q.DrainAll() {
//		// execute path
//	}
package queue
