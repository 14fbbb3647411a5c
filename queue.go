package gql

import "sync"

// serialQueue runs operations one at a time in submission order. An operation
// submitted while another is running is queued and executed by the goroutine
// that is already draining, after the current operation returns. Submitting
// never blocks on a running operation.
type serialQueue struct {
	mu       sync.Mutex
	ops      []func()
	draining bool
}

// run executes op now, or queues it when another operation is in progress.
func (q *serialQueue) run(op func()) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	defer func() {
		if r := recover(); r != nil {
			q.mu.Lock()
			q.ops = nil
			q.draining = false
			q.mu.Unlock()
			panic(r)
		}
	}()

	for len(q.ops) > 0 {
		next := q.ops[0]
		q.ops = q.ops[1:]
		q.mu.Unlock()
		next()
		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}
